package daemon

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAPIOptions(t *testing.T) {
	t.Parallel()

	t.Run("default options", func(t *testing.T) {
		t.Parallel()

		opts, err := NewAPIOptions()
		require.NoError(t, err)
		require.Equal(t, DefaultAPIShutdownTimeout(), opts.ShutdownTimeout)
		require.False(t, opts.CORS.Enabled)
		require.Equal(t, DefaultCORSAllowHeaders(), opts.CORS.AllowedHeaders)
		require.Equal(t, DefaultCORSAllowMethods(), opts.CORS.AllowMethods)
		require.Equal(t, DefaultCORSMaxAge(), opts.CORS.MaxAge)
		require.False(t, opts.CORS.AllowCredentials)
	})

	t.Run("CORS origins leave other defaults intact", func(t *testing.T) {
		t.Parallel()

		origins := []string{"http://localhost:3000", "https://example.com"}
		opts, err := NewAPIOptions(WithCORSAllowOrigins(origins))

		require.NoError(t, err)
		require.False(t, opts.CORS.Enabled)
		require.Equal(t, origins, opts.CORS.AllowOrigins)
		require.Contains(t, opts.CORS.AllowMethods, http.MethodGet)
		require.Contains(t, opts.CORS.AllowMethods, http.MethodDelete)
		require.Contains(t, opts.CORS.AllowedHeaders, "Content-Type")
	})

	t.Run("full CORS configuration", func(t *testing.T) {
		t.Parallel()

		opts, err := NewAPIOptions(
			WithCORSEnabled(true),
			WithCORSAllowOrigins([]string{"https://app.example.com"}),
			WithCORSAllowMethods([]string{http.MethodGet}),
			WithCORSAllowHeaders([]string{"X-Request-ID"}),
			WithCORSAllowCredentials(true),
			WithCORSExposeHeaders([]string{"X-Trace-ID"}),
			WithCORSMaxAge(time.Minute),
		)
		require.NoError(t, err)
		require.True(t, opts.CORS.Enabled)
		require.Equal(t, []string{"https://app.example.com"}, opts.CORS.AllowOrigins)
		require.Equal(t, []string{http.MethodGet}, opts.CORS.AllowMethods)
		require.Equal(t, []string{"X-Request-ID"}, opts.CORS.AllowedHeaders)
		require.True(t, opts.CORS.AllowCredentials)
		require.Equal(t, []string{"X-Trace-ID"}, opts.CORS.ExposedHeaders)
		require.Equal(t, time.Minute, opts.CORS.MaxAge)
	})

	t.Run("later options win", func(t *testing.T) {
		t.Parallel()

		opts, err := NewAPIOptions(
			WithShutdownTimeout(5*time.Second),
			WithShutdownTimeout(10*time.Second),
		)
		require.NoError(t, err)
		require.Equal(t, 10*time.Second, opts.ShutdownTimeout)
	})

	t.Run("shutdown timeout must be positive", func(t *testing.T) {
		t.Parallel()

		_, err := NewAPIOptions(WithShutdownTimeout(0))
		require.EqualError(t, err, "shutdown timeout must be positive, got 0s")

		_, err = NewAPIOptions(WithShutdownTimeout(-1 * time.Second))
		require.EqualError(t, err, "shutdown timeout must be positive, got -1s")
	})
}

func TestValidateAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{
			name: "host and numeric port",
			addr: "localhost:8090",
		},
		{
			name: "IP and port",
			addr: "127.0.0.1:8090",
		},
		{
			name: "empty host with port",
			addr: ":8090",
		},
		{
			name: "named port",
			addr: "localhost:http",
		},
		{
			name:    "missing port",
			addr:    "localhost",
			wantErr: true,
		},
		{
			name:    "not an address",
			addr:    "invalid-address",
			wantErr: true,
		},
		{
			name:    "empty port",
			addr:    "localhost:",
			wantErr: true,
		},
		{
			name:    "unknown named port",
			addr:    "localhost:not-a-service",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validateAddr(tc.addr)

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
