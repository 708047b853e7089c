package config

import (
	"fmt"
	"os"
	"regexp"
)

// ValidationPredicate evaluates a loaded Config and returns an error if invalid.
type ValidationPredicate func(*Config) error

// validatingLoader wraps a Loader to run additional validation predicates at load time.
// Uses decorator pattern to preserve custom loader implementations while adding validation.
type validatingLoader struct {
	Loader
	predicates []ValidationPredicate
}

// NewValidatingLoader creates a loader that runs validation predicates after Load().
func NewValidatingLoader(inner Loader, predicates ...ValidationPredicate) *validatingLoader {
	return &validatingLoader{
		Loader:     inner,
		predicates: predicates,
	}
}

// Load delegates to inner loader, then runs validation predicates.
func (l *validatingLoader) Load(path string) (Modifier, error) {
	mod, err := l.Loader.Load(path)
	if err != nil {
		return nil, err
	}

	cfg, ok := mod.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config structure")
	}

	for _, predicate := range l.predicates {
		if err := predicate(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// RequireReferencedEnv returns a predicate that fails when a server's env
// values reference host environment variables that are not set. References
// are expanded when the server process is spawned, so a missing variable
// would silently become an empty string at that point.
func RequireReferencedEnv() ValidationPredicate {
	return func(cfg *Config) error {
		for _, entry := range cfg.Servers {
			for key, value := range entry.Env {
				for _, match := range envRefPattern.FindAllStringSubmatch(value, -1) {
					ref := match[1]
					if _, ok := os.LookupEnv(ref); !ok {
						return fmt.Errorf(
							"server '%s': env '%s' references unset environment variable '%s'",
							entry.Name, key, ref,
						)
					}
				}
			}
		}

		return nil
	}
}
