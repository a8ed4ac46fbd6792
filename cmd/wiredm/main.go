package main

import (
	"fmt"
	"os"

	"github.com/vovakirdan/wiredm/cmd/wiredm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wiredm:", err)
		os.Exit(1)
	}
}
