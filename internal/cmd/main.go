package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mitchellh/cli"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/internal/version"
	"github.com/wehubfusion/keygen/pkg/logging"
)

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	cliName := args[0]

	log, err := logging.New(os.Getenv("KEYGEN_LOG_LEVEL"), os.Getenv("KEYGEN_LOG_FORMAT"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		return 1
	}
	defer log.Sync()
	log = log.Named(cliName)

	if len(args) == 2 &&
		(args[1] == "-version" ||
			args[1] == "-v") {
		args = []string{cliName, "version"}
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := &cli.CLI{
		Name:     cliName,
		Args:     args[1:],
		Version:  version.Version,
		Commands: Commands(log, ui),
	}

	exitCode, err := c.Run()
	if err != nil {
		log.Error("CLI failed", zap.Error(err))
		return 1
	}
	return exitCode
}
