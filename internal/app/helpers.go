package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/komuness/core/internal/config"
	jwtpkg "github.com/komuness/core/internal/pkg/jwt"
	"go.uber.org/zap"
)

// applyRuntimeSettings installs process-wide settings: the token secret and
// the local timezone used for logs and cron.
func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) error {
	switch secret := strings.TrimSpace(cfg.JWTSecret); {
	case secret != "":
		jwtpkg.SetSecret(secret)
	case cfg.IsDev():
		logger.Warn("jwt_secret is empty, falling back to the development secret")
	default:
		return errors.New("jwt_secret must be set outside development")
	}

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return nil
	}
	loc, err := parseTimezoneLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	time.Local = loc
	_ = os.Setenv("TZ", tz)
	return nil
}

// parseTimezoneLocation accepts an IANA zone name or a fixed offset like -06:00.
func parseTimezoneLocation(raw string) (*time.Location, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return time.Local, nil
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if t, err := time.Parse("-07:00", tz); err == nil {
		_, offset := t.Zone()
		return time.FixedZone(tz, offset), nil
	}
	return nil, errors.New("expect IANA zone (e.g. America/Costa_Rica) or UTC offset (e.g. -06:00)")
}

// humanizeDuration drops precision below the duration's leading unit.
func humanizeDuration(d time.Duration) string {
	unit := time.Hour
	switch {
	case d < time.Minute:
		unit = time.Second
	case d < time.Hour:
		unit = time.Minute
	}
	return d.Truncate(unit).String()
}
