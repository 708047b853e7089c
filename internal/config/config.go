package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/beyondbetter/mcphub/internal/perms"
)

// Init creates the base skeleton configuration file for the mcphub project.
func (d *DefaultLoader) Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	content := `servers = []`

	if err := os.WriteFile(path, []byte(content), perms.SecureFile); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func (d *DefaultLoader) Load(path string) (Modifier, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrConfigLoadFailed)
	}

	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file cannot be found, run: 'mcphub init'", ErrConfigLoadFailed)
		}
		return nil, fmt.Errorf("%w: failed to stat config file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	var cfg *Config
	_, err = toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode config from file (%s): %w", ErrConfigLoadFailed, path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config file is empty (%s)", ErrConfigLoadFailed, path)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: failed to validate existing config (%s): %w", ErrConfigLoadFailed, path, err)
	}

	// Track the path that loaded this file so mutations can persist to it.
	cfg.configFilePath = path

	return cfg, nil
}

// AddServer persists a new or replacement MCP server entry to the
// configuration file. An existing entry with the same name is replaced in
// place; its position in the file is preserved.
func (c *Config) AddServer(entry ServerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	replaced := false
	for i, s := range c.Servers {
		if s.Name == entry.Name {
			c.Servers[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		c.Servers = append(c.Servers, entry)
	}

	if err := c.validate(); err != nil {
		return err
	}

	return c.saveConfig()
}

// RemoveServer removes a server entry by name from the configuration file,
// along with any persisted token for it.
func (c *Config) RemoveServer(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: server name cannot be empty", ErrInvalidEntry)
	}

	filtered := make([]ServerEntry, 0, len(c.Servers))
	for _, s := range c.Servers {
		if s.Name != name {
			filtered = append(filtered, s)
		}
	}

	if len(filtered) == len(c.Servers) {
		return fmt.Errorf("server '%s' not found in config", name)
	}

	c.Servers = filtered
	delete(c.Tokens, name)

	if err := c.validate(); err != nil {
		return err
	}

	return c.saveConfig()
}

// ListServers returns a copy of the currently configured server entries.
// This provides read-only access without exposing mutation of the underlying slice.
func (c *Config) ListServers() []ServerEntry {
	return slices.Clone(c.Servers)
}

// Server returns the entry with the given name, if present.
func (c *Config) Server(name string) (ServerEntry, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerEntry{}, false
}

// UpsertToken persists an OAuth token for a server. The token rides the same
// save path as server entries so a refreshed token survives a restart.
func (c *Config) UpsertToken(server string, token TokenEntry) error {
	server = strings.TrimSpace(server)
	if server == "" {
		return fmt.Errorf("%w: server name cannot be empty", ErrInvalidEntry)
	}

	if c.Tokens == nil {
		c.Tokens = make(map[string]TokenEntry)
	}
	c.Tokens[server] = token

	return c.saveConfig()
}

// DeleteToken removes the persisted token for a server, if any.
func (c *Config) DeleteToken(server string) error {
	if _, ok := c.Tokens[server]; !ok {
		return nil
	}
	delete(c.Tokens, server)

	return c.saveConfig()
}

// Token returns the persisted token for a server, if any.
func (c *Config) Token(server string) (TokenEntry, bool) {
	t, ok := c.Tokens[server]
	return t, ok
}

// SaveConfig saves the current configuration to the config file.
func (c *Config) SaveConfig() error {
	return c.saveConfig()
}

func (c *Config) saveConfig() error {
	if c.configFilePath == "" {
		return fmt.Errorf("%w: config file path not present", ErrConfigSaveFailed)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSaveFailed, err)
	}

	// Tokens live in this file, so it is never world readable.
	if err := os.WriteFile(c.configFilePath, data, perms.SecureFile); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigSaveFailed, err)
	}

	return nil
}

// validate orchestrates validation of configuration structure.
func (c *Config) validate() error {
	seen := map[string]struct{}{}

	for i := range c.Servers {
		entry := &c.Servers[i]
		if err := entry.Validate(); err != nil {
			return err
		}
		if _, ok := seen[entry.Name]; ok {
			return fmt.Errorf("%w: duplicate server name '%s'", ErrInvalidEntry, entry.Name)
		}
		seen[entry.Name] = struct{}{}
	}

	for name := range c.Tokens {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("%w: token persisted for unknown server '%s'", ErrInvalidEntry, name)
		}
	}

	return nil
}
