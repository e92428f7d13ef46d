package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"illust_nest/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	return path
}

func TestLoadPath(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		path := writeConfig(t, "api:\n  base_url: http://gallery.local\n")

		cfg, err := config.LoadPath(path)
		require.NoError(t, err)

		assert.Equal(t, "local", cfg.Env)
		assert.Equal(t, "http://gallery.local", cfg.API.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, "file", cfg.Session.Backend)
		assert.Equal(t, 20, cfg.Listing.PageSize)
		assert.Equal(t, "8088", cfg.Preview.Port)
	})

	t.Run("explicit values", func(t *testing.T) {
		path := writeConfig(t, `env: prod
api:
  base_url: https://nest.example.com
  timeout: 5s
session:
  backend: redis
listing:
  page_size: 50
`)

		cfg, err := config.LoadPath(path)
		require.NoError(t, err)

		assert.Equal(t, "prod", cfg.Env)
		assert.Equal(t, 5*time.Second, cfg.API.Timeout)
		assert.Equal(t, "redis", cfg.Session.Backend)
		assert.Equal(t, 50, cfg.Listing.PageSize)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("must load panics", func(t *testing.T) {
		assert.Panics(t, func() {
			config.MustLoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
		})
	})
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"works", "list"}, []string{"works", "list"}},
		{[]string{"--config", "c.yaml", "works", "list", "-all"}, []string{"works", "list", "-all"}},
		{[]string{"tags", "-config=c.yaml", "list"}, []string{"tags", "list"}},
		{[]string{"status", "--config"}, []string{"status"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, config.CommandArgs(tt.in))
	}
}
