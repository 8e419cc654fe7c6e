package main

import (
	"os"

	"github.com/hildam/harvey-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
