package app

import (
	"testing"
	"time"

	"github.com/komuness/core/internal/config"
	"github.com/komuness/core/internal/modules/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMatchOriginPattern(t *testing.T) {
	cases := []struct {
		pattern string
		origin  string
		want    bool
	}{
		{"komuness.cr", "https://komuness.cr", true},
		{"https://komuness.cr", "https://komuness.cr", true},
		{"*.komuness.cr", "https://admin.komuness.cr", true},
		{"*.komuness.cr", "https://komuness.cr.evil.io", false},
		{"localhost:*", "http://localhost:5173", true},
		{"komuness.cr", "https://other.cr", false},
	}
	for _, tc := range cases {
		got := matchOriginPattern(tc.pattern, extractOriginHost(tc.origin))
		assert.Equal(t, tc.want, got, "%s vs %s", tc.pattern, tc.origin)
	}
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("-06:00")
	require.NoError(t, err)
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -6*3600, offset)

	loc, err = parseTimezoneLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC.String(), loc.String())

	_, err = parseTimezoneLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "42s", humanizeDuration(42*time.Second+300*time.Millisecond))
	assert.Equal(t, "30m0s", humanizeDuration(30*time.Minute+10*time.Second))
	assert.Equal(t, "26h0m0s", humanizeDuration(26*time.Hour+5*time.Minute))
}

func TestOpenStorageLocal(t *testing.T) {
	cfg, err := config.Parse([]byte("paths:\n  uploads: " + t.TempDir() + "\n"))
	require.NoError(t, err)

	storage, local, err := openStorage(cfg)
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Same(t, local, storage)
}

func TestOpenStorageS3(t *testing.T) {
	cfg, err := config.Parse([]byte("storage:\n  driver: s3\n  s3:\n    bucket: komuness\n    region: us-east-1\n"))
	require.NoError(t, err)

	storage, local, err := openStorage(cfg)
	require.NoError(t, err)
	assert.Nil(t, local)
	assert.NotNil(t, storage)
}

func TestNewNotifierFollowsMailSwitch(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	assert.IsType(t, notify.Nop{}, newNotifier(cfg, zap.NewNop()))

	cfg.Mail.Enable = true
	cfg.Mail.AdminEmails = []string{"admin@komuness.cr"}
	assert.IsType(t, &notify.MailNotifier{}, newNotifier(cfg, zap.NewNop()))
}

func TestApplyRuntimeSettingsRequiresSecretInProduction(t *testing.T) {
	cfg, err := config.Parse([]byte("node_env: production\n"))
	require.NoError(t, err)
	assert.Error(t, applyRuntimeSettings(cfg, zap.NewNop()))

	cfg.JWTSecret = "prod-secret"
	assert.NoError(t, applyRuntimeSettings(cfg, zap.NewNop()))
}
