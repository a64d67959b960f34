package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// cacheEntry is the session cache record: the payload plus the Unix
// millisecond time it was stored.
type cacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// cached serves key from the session store while it is younger than ttl and
// otherwise calls fetch and stores the fresh result. accept vets a payload
// before it is served from or written to the cache: a stored entry it
// rejects is a miss, and a fetched payload it rejects fails the call without
// being stored. The cache never fails a caller on its own: unreadable
// entries count as misses and write errors are logged.
func (c *Client) cached(key string, ttl time.Duration, fetch func() (json.RawMessage, error), accept func(json.RawMessage) error) (json.RawMessage, error) {
	now := c.now()
	if raw, err := c.cache.Get(key); err == nil {
		var entry cacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			slog.Debug("ignoring unreadable cache entry", "key", key, "error", err)
		} else if entry.Data != nil && now.UnixMilli()-entry.Timestamp < ttl.Milliseconds() {
			if err := accept(entry.Data); err == nil {
				return entry.Data, nil
			}
			slog.Debug("ignoring rejected cache entry", "key", key)
		}
	}

	data, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := accept(data); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cacheEntry{Data: data, Timestamp: now.UnixMilli()})
	if err == nil {
		err = c.cache.Set(key, raw)
	}
	if err != nil {
		slog.Warn("could not cache response", "key", key, "error", err)
	}
	return data, nil
}

// ClearCache empties the session cache and asks the backend to flush its own
// cache. Only a failure to clear the local store is returned; the backend
// flush is best-effort and merely logged.
func (c *Client) ClearCache(ctx context.Context) error {
	if err := c.cache.Clear(); err != nil {
		slog.Error("clearing session cache", "error", err)
		return err
	}
	if err := c.do(ctx, http.MethodGet, "/debug/cache?action=flush", nil, nil); err != nil {
		slog.Warn("error clearing backend cache", "error", err)
	}
	return nil
}
