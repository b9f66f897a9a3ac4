package cmd

import (
	"github.com/mitchellh/cli"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/internal/cmd/base"
	"github.com/wehubfusion/keygen/internal/cmd/commands/kafka"
	"github.com/wehubfusion/keygen/internal/cmd/commands/nats"
	"github.com/wehubfusion/keygen/internal/cmd/commands/run"
	"github.com/wehubfusion/keygen/internal/cmd/commands/version"
)

// Commands returns the subcommand factories keyed by name.
func Commands(log *zap.Logger, ui cli.Ui) map[string]cli.CommandFactory {
	b := base.NewCommand(log, ui)

	return map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return &run.Command{Command: b}, nil
		},
		"nats": func() (cli.Command, error) {
			return &nats.Command{Command: b}, nil
		},
		"kafka": func() (cli.Command, error) {
			return &kafka.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
