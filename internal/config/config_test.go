package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, StorageLocal, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Moderation.MaxEdits)
	assert.True(t, cfg.Moderation.ChargeNoopApproval)
	assert.False(t, cfg.Moderation.StrictFields)
	assert.Contains(t, cfg.DSN, "root:password@tcp(127.0.0.1:3306)/komuness?")
	assert.Contains(t, cfg.DSN, "parseTime=true")
	assert.Contains(t, cfg.DSN, "charset=utf8mb4")
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
}

func TestParseOverridesAndAliases(t *testing.T) {
	t.Setenv("KOMUNESS_TEST_SECRET", "s3cr3t")
	doc := `
port: 8080
node_env: Production
jwt_secret: ${KOMUNESS_TEST_SECRET}
cors_allowed_origins: [" https://komuness.app ", ""]
database:
  username: app
  db_name: komu
  params:
    timeout: 5s
redis:
  url: cache:6380/2
storage:
  driver: S3
  public_base_url: https://cdn.komuness.app/
  allowed_formats: [".JPG", "png"]
  s3:
    bucket: uploads
    prefix: /pub/
moderation:
  max_edits: 5
  charge_noop_approval: false
  strict_fields: true
admin_emails: [admin@komuness.app]
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "s3cr3t", cfg.JWTSecret)
	assert.Equal(t, []string{"https://komuness.app"}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.DSN, "app:password@tcp(127.0.0.1:3306)/komu?")
	assert.Contains(t, cfg.DSN, "timeout=5s")
	assert.Equal(t, "redis://cache:6380/2", cfg.RedisURL)
	assert.Equal(t, StorageS3, cfg.Storage.Driver)
	assert.Equal(t, "https://cdn.komuness.app", cfg.Storage.PublicBaseURL)
	assert.Equal(t, []string{"jpg", "png"}, cfg.Storage.AllowedFormats)
	assert.Equal(t, "pub", cfg.Storage.S3.Prefix)
	assert.Equal(t, 5, cfg.Moderation.MaxEdits)
	assert.False(t, cfg.Moderation.ChargeNoopApproval)
	assert.True(t, cfg.Moderation.StrictFields)
	assert.Equal(t, []string{"admin@komuness.app"}, cfg.Mail.AdminEmails)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("prot: 80\n"))
	require.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"port":       "port: 70000\n",
		"driver":     "database:\n  driver: postgres\n",
		"storage":    "storage:\n  driver: ftp\n",
		"s3 bucket":  "storage:\n  driver: s3\n",
		"max edits":  "moderation:\n  max_edits: -1\n",
		"redis port": "redis:\n  port: -5\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 5050\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KOMUNESS_DOTENV_PROBE=from-file\n"), 0o600))
	t.Setenv("KOMUNESS_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("KOMUNESS_DOTENV_PROBE"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "nope.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv("KOMUNESS_DOTENV_PROBE"))
}

func TestResolveDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("KOMUNESS_HOME", home)

	assert.Equal(t, "/srv/uploads", ResolveDir("/srv/uploads/", "uploads"))
	assert.Equal(t, filepath.Join(home, "logs"), ResolveDir("", "logs"))
	assert.Equal(t, filepath.Join(home, "data", "files"), ResolveDir(" data/files ", "uploads"))
}
