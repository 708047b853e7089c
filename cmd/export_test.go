package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beyondbetter/mcphub/internal/cmd"
)

func TestExportServers_YAMLDefault(t *testing.T) {
	writeConfig(t, listTestConfig)

	output := &bytes.Buffer{}

	c, err := NewExportCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	c.SetOut(output)
	c.SetErr(output)
	c.SetArgs(nil)

	require.NoError(t, c.Execute())

	out := output.String()
	require.Contains(t, out, "results:")
	require.Contains(t, out, "name: drive")
	require.Contains(t, out, "name: notes")

	// Exports are for recreating configuration, credentials included.
	require.Contains(t, out, "client_secret: hunter2")
}

func TestExportServers_JSONToFile(t *testing.T) {
	writeConfig(t, listTestConfig)

	outPath := filepath.Join(t.TempDir(), "servers.json")

	c, err := NewExportCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"--format", "json", "--output", outPath})

	require.NoError(t, c.Execute())

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"results"`)
	require.Contains(t, string(data), `"clientSecret": "hunter2"`)
}

func TestExportServers_UnwritableOutput(t *testing.T) {
	writeConfig(t, listTestConfig)

	c, err := NewExportCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"--output", "/nonexistent/dir/servers.yaml"})

	err = c.Execute()
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to open output file")
}
