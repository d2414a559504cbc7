package main

import (
	"os"

	"github.com/openkenya/ecitizen-crawler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
