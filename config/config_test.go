package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndResolve(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := Register(fs)
	require.NoError(t, fs.Parse([]string{"--port", "9000", "--token-secret", "s3cret", "--site-url", "https://forms.example.org/"}))
	require.NoError(t, cfg.Resolve())

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, "http://localhost:9000", cfg.Url())
	assert.Equal(t, "https://forms.example.org", cfg.SiteURL)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.UnlockTTL)
}

func TestResolveRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing secret", []string{}},
		{"bad driver", []string{"--token-secret", "x", "--db-driver", "mysql"}},
		{"zero ttl", []string{"--token-secret", "x", "--token-ttl", "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			cfg := Register(fs)
			require.NoError(t, fs.Parse(tt.args))
			assert.Error(t, cfg.Resolve())
		})
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("SURVEY_TOKEN_SECRET=from-env\nSURVEY_KAFKA_BROKERS=a:9092,b:9092\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SURVEY_TOKEN_SECRET")
		os.Unsetenv("SURVEY_KAFKA_BROKERS")
	})

	require.NoError(t, LoadDotEnv(file, filepath.Join(dir, "missing.env")))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := Register(fs)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, cfg.Resolve())
	assert.Equal(t, "from-env", cfg.TokenSecret)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}
