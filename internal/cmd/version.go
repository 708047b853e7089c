package cmd

// version is set at build time using -ldflags.
var version = "0.1.0"

// Version returns the version of the application.
func Version() string {
	return version
}
