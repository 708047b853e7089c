package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beyondbetter/mcphub/internal/cmd"
	"github.com/beyondbetter/mcphub/internal/flags"
)

const listTestConfig = `[[servers]]
name = "drive"
transport = "http"
url = "https://drive.example.com/mcp"

[servers.headers]
Authorization = "Bearer super-secret"

[servers.oauth]
grant_type = "client_credentials"
client_id = "client-1"
client_secret = "hunter2"
token_url = "https://auth.example.com/token"

[[servers]]
name = "notes"
transport = "stdio"
command = "notes-server"
`

func runListCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	output := &bytes.Buffer{}

	c, err := NewListCmd(&cmd.BaseCmd{})
	require.NoError(t, err)
	c.SetOut(output)
	c.SetErr(output)
	c.SetArgs(args)

	err = c.Execute()
	return output.String(), err
}

func TestListServers_Text(t *testing.T) {
	writeConfig(t, listTestConfig)

	out, err := runListCmd(t)
	require.NoError(t, err)

	require.Contains(t, out, "Configured servers (2):")
	require.Contains(t, out, "• drive (http)")
	require.Contains(t, out, "url: https://drive.example.com/mcp")
	require.Contains(t, out, "auth: oauth (client_credentials)")
	require.Contains(t, out, "• notes (stdio)")
	require.Contains(t, out, "command: notes-server")

	// Sorted by name.
	require.Less(t, bytes.Index([]byte(out), []byte("drive")), bytes.Index([]byte(out), []byte("notes")))
}

func TestListServers_JSONRedactsCredentials(t *testing.T) {
	writeConfig(t, listTestConfig)

	out, err := runListCmd(t, "--format", "json")
	require.NoError(t, err)

	require.Contains(t, out, `"results"`)
	require.Contains(t, out, `"clientSecret": "<redacted>"`)
	require.Contains(t, out, `"Authorization": "<redacted>"`)
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, out, "super-secret")
}

func TestListServers_YAML(t *testing.T) {
	writeConfig(t, listTestConfig)

	out, err := runListCmd(t, "--format", "yaml")
	require.NoError(t, err)

	require.Contains(t, out, "results:")
	require.Contains(t, out, "name: drive")
	require.Contains(t, out, "client_secret: <redacted>")
	require.NotContains(t, out, "hunter2")
}

func TestListServers_Empty(t *testing.T) {
	writeConfig(t, `servers = []`)

	out, err := runListCmd(t)
	require.NoError(t, err)
	require.Contains(t, out, "No items found")
}

func TestListServers_MissingConfig(t *testing.T) {
	writeConfig(t, `servers = []`)
	flags.ConfigFile = "/nonexistent/.mcphub.toml"

	_, err := runListCmd(t)
	require.Error(t, err)
	require.ErrorContains(t, err, "config file cannot be found")
}
