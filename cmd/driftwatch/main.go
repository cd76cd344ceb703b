package main

import (
	"os"

	"github.com/jmgilman/driftwatch/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
