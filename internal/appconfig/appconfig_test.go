package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig_RendersEnvironment(t *testing.T) {
	t.Setenv("TEST_SESSION_SECRET", "s3cret")
	t.Setenv("TEST_DB_URL", "postgres://portal@localhost/portal?sslmode=disable")

	path := writeConfig(t, `
host: portal.example.org
portal:
  url: https://portal.example.org
  sessionSecret: "{{ .TEST_SESSION_SECRET }}"
  sessionTTL: 30m
  behindProxy: true
database:
  source: "{{ .TEST_DB_URL }}"
directory:
  url: http://dpc-api:3002/api/v1
  timeout: 5s
  retries: 3
  token:
    source: secretsmanager
    secretId: dpc/admin-token
accounts:
  invitationTTL: 24h
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "portal.example.org", cfg.Host)
	assert.Equal(t, "s3cret", cfg.Portal.SessionSecret)
	assert.Equal(t, 30*time.Minute, cfg.Portal.SessionTTL)
	assert.True(t, cfg.Portal.BehindProxy)
	assert.Equal(t, "postgres://portal@localhost/portal?sslmode=disable", cfg.Database.Source)
	assert.Equal(t, 5*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, 3, cfg.Directory.Retries)
	assert.Equal(t, "secretsmanager", cfg.Directory.Token.Source)
	assert.Equal(t, 24*time.Hour, cfg.Accounts.InvitationTTL)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
portal:
  sessionSecret: abc
directory:
  fake: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.BasePath)
	assert.Equal(t, "/docs", cfg.DocsPath)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Portal.SessionTTL)
	assert.Equal(t, 72*time.Hour, cfg.Accounts.InvitationTTL)
	assert.Equal(t, 6*time.Hour, cfg.Accounts.PasswordResetTTL)
	assert.Equal(t, 10*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, "env", cfg.Directory.Token.Source)
	assert.Equal(t, "DPC_API_ADMIN_TOKEN", cfg.Directory.Token.EnvVar)
	assert.True(t, cfg.Directory.Fake)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.EqualError(t, err, "config file path is required")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "host: [unterminated"))
	assert.ErrorContains(t, err, "failed to unmarshal config YAML")

	_, err = LoadConfig(writeConfig(t, "host: portal"))
	assert.EqualError(t, err, "portal.sessionSecret is required")

	_, err = LoadConfig(writeConfig(t, "portal:\n  sessionSecret: abc\n"))
	assert.EqualError(t, err, "directory.url is required unless directory.fake is set")
}
