package main

import (
	"os"

	"github.com/markdave123-py/ragline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
