package main

import (
	"os"

	"github.com/shisei-toshokan/shisei/web/internal/cli/cmd"
	"github.com/shisei-toshokan/shisei/web/internal/cli/output"
)

func main() {
	if err := cmd.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}
