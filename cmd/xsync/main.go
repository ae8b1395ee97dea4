package main

import (
	"os"

	"github.com/ppiankov/xsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
