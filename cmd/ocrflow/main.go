package main

import (
	"os"

	"github.com/minghan/ocrflow/cmd/ocrflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
