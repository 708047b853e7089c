package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/beyondbetter/mcphub/internal/cmd"
	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/flags"
)

// writeConfig creates a config file in a temp dir and points the global
// config file flag at it for the duration of the test.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".mcphub.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	previousConfigFile := flags.ConfigFile
	t.Cleanup(func() { flags.ConfigFile = previousConfigFile })
	flags.ConfigFile = path

	return path
}

func decodeConfig(t *testing.T, path string) config.Config {
	t.Helper()

	var parsed config.Config
	_, err := toml.DecodeFile(path, &parsed)
	require.NoError(t, err)

	return parsed
}

func TestRemoveServer(t *testing.T) {
	tests := []struct {
		name               string
		args               []string
		initialContent     string
		expectedNumServers int
		expectedOutputs    []string
		expectedError      string
	}{
		{
			name: "basic server remove",
			args: []string{"first-server"},
			initialContent: `[[servers]]
name = "first-server"
transport = "stdio"
command = "first-server-bin"
`,
			expectedNumServers: 0,
			expectedOutputs: []string{
				"✓ Removed server 'first-server'",
			},
		},
		{
			name:           "empty server name",
			args:           []string{"  "},
			initialContent: `servers = []`,
			expectedError:  "server name is required and cannot be empty",
		},
		{
			name: "server name with whitespace",
			args: []string{" spaced-server "},
			initialContent: `[[servers]]
name = "spaced-server"
transport = "stdio"
command = "spaced"
`,
			expectedNumServers: 0,
			expectedOutputs: []string{
				"✓ Removed server 'spaced-server'",
			},
		},
		{
			name: "existing config file should leave others",
			args: []string{"second-server"},
			initialContent: `[[servers]]
name = "first-server"
transport = "stdio"
command = "first-server-bin"

[[servers]]
name = "second-server"
transport = "http"
url = "https://second.example.com/mcp"
`,
			expectedNumServers: 1,
			expectedOutputs: []string{
				"✓ Removed server 'second-server'",
			},
		},
		{
			name: "unknown server",
			args: []string{"missing"},
			initialContent: `[[servers]]
name = "first-server"
transport = "stdio"
command = "first-server-bin"
`,
			expectedError: "server 'missing' not found",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			configPath := writeConfig(t, tc.initialContent)

			output := &bytes.Buffer{}

			baseCmd := &cmd.BaseCmd{}
			c, err := NewRemoveCmd(baseCmd)
			require.NoError(t, err)
			c.SetOut(output)
			c.SetErr(output)
			c.SetArgs(tc.args)

			err = c.Execute()

			if tc.expectedError != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.expectedError)
				return
			}

			require.NoError(t, err)

			outputStr := output.String()
			for _, expectedOutput := range tc.expectedOutputs {
				require.Contains(t, outputStr, expectedOutput)
			}

			parsed := decodeConfig(t, configPath)
			require.Len(t, parsed.Servers, tc.expectedNumServers)
		})
	}
}
