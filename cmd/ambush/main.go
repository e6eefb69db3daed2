package main

import (
	"os"

	"fundambush/cmd/ambush/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
