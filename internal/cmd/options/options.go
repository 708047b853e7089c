package options

import (
	"github.com/beyondbetter/mcphub/internal/config"
)

// CmdOption mutates CmdOptions, returning an error when the value is unusable.
type CmdOption func(*CmdOptions) error

// CmdOptions holds the swappable collaborators for CLI commands,
// allowing tests to substitute in-memory implementations.
type CmdOptions struct {
	ConfigLoader      config.Loader
	ConfigInitializer config.Initializer
}

func defaultOptions() CmdOptions {
	configLoader := &config.DefaultLoader{}
	return CmdOptions{
		ConfigLoader:      configLoader,
		ConfigInitializer: configLoader,
	}
}

// NewOptions applies the given options on top of the defaults, skipping nils.
func NewOptions(opt ...CmdOption) (CmdOptions, error) {
	opts := defaultOptions()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return CmdOptions{}, err
		}
	}
	return opts, nil
}

// WithConfigLoader sets the loader used to read the project configuration file.
func WithConfigLoader(l config.Loader) CmdOption {
	return func(o *CmdOptions) error {
		o.ConfigLoader = l
		return nil
	}
}

// WithConfigInitializer sets the initializer used to create a new configuration file.
func WithConfigInitializer(i config.Initializer) CmdOption {
	return func(o *CmdOptions) error {
		o.ConfigInitializer = i
		return nil
	}
}
