package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/perms"
)

// TestConfigFilePermissions verifies that the configuration file is created
// with secure permissions. The file can hold OAuth client secrets and stored
// tokens, so it must never be group or world readable.
func TestConfigFilePermissions(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".mcphub.toml")

	loader := &config.DefaultLoader{}
	require.NoError(t, loader.Init(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	require.False(t, info.IsDir())
	require.Equal(t, perms.SecureFile, info.Mode().Perm(),
		"Configuration file should be created with secure permissions (0600)")
}

// TestConfigFilePermissionsAfterTokenSave verifies that persisting a token
// through the store keeps the file at secure permissions.
func TestConfigFilePermissionsAfterTokenSave(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".mcphub.toml")

	initial := `[[servers]]
name = "drive"
transport = "http"
url = "https://drive.example.com/mcp"
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), perms.SecureFile))

	loader := &config.DefaultLoader{}
	cfg, err := loader.Load(configPath)
	require.NoError(t, err)

	err = cfg.UpsertToken("drive", config.TokenEntry{
		AccessToken: "token-value",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	require.Equal(t, perms.SecureFile, info.Mode().Perm(),
		"Config file with a stored token should have secure permissions (0600)")
}
