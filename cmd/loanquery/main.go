package main

import (
	"os"

	"github.com/pysugar/loanpilot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
