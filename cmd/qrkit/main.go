package main

import (
	"os"

	"github.com/MeKo-Tech/qrkit/cmd/qrkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
