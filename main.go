package main

import (
	"os"

	"github.com/firefly-engineering/hutch/cmd"
	"github.com/firefly-engineering/hutch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
