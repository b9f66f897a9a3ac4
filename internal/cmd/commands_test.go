package cmd

import (
	"sort"
	"strings"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wehubfusion/keygen/internal/version"
)

func TestCommands(t *testing.T) {
	commands := Commands(zap.NewNop(), cli.NewMockUi())

	names := make([]string, 0, len(commands))
	for name, factory := range commands {
		names = append(names, name)
		cmd, err := factory()
		require.NoError(t, err)
		assert.NotEmpty(t, cmd.Synopsis(), name)
		assert.True(t, strings.HasPrefix(cmd.Help(), "Usage: keygen "+name), name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"kafka", "nats", "run", "version"}, names)
}

func TestVersionCommand(t *testing.T) {
	ui := cli.NewMockUi()
	cmd, err := Commands(zap.NewNop(), ui)["version"]()
	require.NoError(t, err)

	assert.Equal(t, 0, cmd.Run(nil))
	assert.Equal(t, "keygen "+version.Version+"\n", ui.OutputWriter.String())
}

func TestServiceCommandsRejectIncompleteConfig(t *testing.T) {
	t.Setenv("KEYGEN_SPEC", "")
	for _, name := range []string{"nats", "kafka"} {
		ui := cli.NewMockUi()
		cmd, err := Commands(zap.NewNop(), ui)[name]()
		require.NoError(t, err)

		assert.Equal(t, 1, cmd.Run(nil), name)
		assert.Contains(t, ui.ErrorWriter.String(), "specification file is required", name)
	}
}
