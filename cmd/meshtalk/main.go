package main

import (
	"os"

	"meshtalk/cmd/meshtalk/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
