package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached backend data",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the local cache and ask the backend to flush its own",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if err := mustClient().ClearCache(cmd.Context()); err != nil {
		fail(err)
	}
	fmt.Println("Cache cleared.")
	return nil
}
