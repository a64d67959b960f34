package main

import "github.com/Tiliavir/fleet-timesheet/cmd"

func main() {
	cmd.Execute()
}
