package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadDotEnv loads variables from the given .env files when they exist.
// Variables already present in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %q: %w", f, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads the YAML config at configPath. ${VAR} references are expanded from the environment.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML config document.
func Parse(content []byte) (*AppConfig, error) {
	expanded := os.ExpandEnv(string(content))

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	applyRawAppConfig(&cfg, raw)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required when database.driver is mongo")
		}
	default:
		return fmt.Errorf("invalid database.driver %q, expected mysql or mongo", c.Database.Driver)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required when storage.driver is s3")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q, expected local or s3", c.Storage.Driver)
	}
	if c.Moderation.MaxEdits < 1 {
		return fmt.Errorf("invalid moderation.max_edits %d, expected >= 1", c.Moderation.MaxEdits)
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Mongo: MongoRuntimeConfig{
			URI:      defaultMongoURI,
			Database: defaultMongoDB,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Storage: StorageConfig{
			Driver:                   defaultStorageDriver,
			PublicBaseURL:            defaultPublicBaseURL,
			MaxUploadMB:              defaultMaxUploadMB,
			ProvisionalTTLMinutes:    defaultProvisionalTTLMinutes,
			ReconcileIntervalMinutes: defaultReconcileMinutes,
			S3:                       S3Config{Region: defaultS3Region},
		},
		Moderation: ModerationConfig{
			MaxEdits:           defaultMaxEdits,
			ChargeNoopApproval: true,
		},
		RateLimit: RateLimitConfig{
			Max:           defaultRateLimitMax,
			WindowSeconds: defaultRateLimitWindow,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeList(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeList(raw.CORSAllowedOrigins)
	}

	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.Uploads); v != "" {
		cfg.Paths.Uploads = v
	}
	if v := strings.TrimSpace(raw.UploadDir); v != "" {
		cfg.Paths.Uploads = v
	}

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Mongo = applyRawMongoConfig(cfg.Mongo, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.Storage = applyRawStorageConfig(cfg.Storage, raw)
	cfg.Mail = applyRawMailConfig(cfg.Mail, raw)

	if raw.Moderation.MaxEdits != 0 {
		cfg.Moderation.MaxEdits = raw.Moderation.MaxEdits
	}
	if raw.Moderation.ChargeNoopApproval != nil {
		cfg.Moderation.ChargeNoopApproval = *raw.Moderation.ChargeNoopApproval
	}
	if raw.Moderation.StrictFields != nil {
		cfg.Moderation.StrictFields = *raw.Moderation.StrictFields
	}
	if v := strings.TrimSpace(raw.Publications.DefaultCategory); v != "" {
		cfg.Publications.DefaultCategory = v
	}
	if raw.RateLimit.Max != 0 {
		cfg.RateLimit.Max = raw.RateLimit.Max
	}
	if raw.RateLimit.WindowSeconds != 0 {
		cfg.RateLimit.WindowSeconds = raw.RateLimit.WindowSeconds
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Env = normalizeEnv(cfg.Env)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Database.Driver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.Params != nil {
		cfg.Params = copyStringMap(raw.Database.Params)
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawMongoConfig(current MongoRuntimeConfig, raw rawAppConfig) MongoRuntimeConfig {
	cfg := current
	if v := strings.TrimSpace(raw.Mongo.URI); v != "" {
		cfg.URI = v
	}
	if v := strings.TrimSpace(raw.Mongo.URL); v != "" {
		cfg.URI = v
	}
	if v := strings.TrimSpace(raw.MongoURI); v != "" {
		cfg.URI = v
	}
	if v := strings.TrimSpace(raw.Mongo.Database); v != "" {
		cfg.Database = v
	}
	return cfg
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if raw.Redis.Params != nil {
		cfg.Params = copyStringMap(raw.Redis.Params)
	}

	return normalizeRedisConfig(cfg)
}

func applyRawStorageConfig(current StorageConfig, raw rawAppConfig) StorageConfig {
	cfg := current
	rs := raw.Storage

	if v := strings.TrimSpace(rs.Driver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(rs.PublicBaseURL); v != "" {
		cfg.PublicBaseURL = v
	}
	if v := strings.TrimSpace(raw.PublicBaseURL); v != "" {
		cfg.PublicBaseURL = v
	}
	if rs.MaxUploadMB != 0 {
		cfg.MaxUploadMB = rs.MaxUploadMB
	}
	if rs.AllowedFormats != nil {
		cfg.AllowedFormats = normalizeList(rs.AllowedFormats)
	}
	if rs.ProvisionalTTLMinutes != 0 {
		cfg.ProvisionalTTLMinutes = rs.ProvisionalTTLMinutes
	}
	if rs.ReconcileIntervalMinutes != 0 {
		cfg.ReconcileIntervalMinutes = rs.ReconcileIntervalMinutes
	}

	s3 := cfg.S3
	if v := strings.TrimSpace(rs.S3.Endpoint); v != "" {
		s3.Endpoint = v
	}
	if v := strings.TrimSpace(rs.S3.Region); v != "" {
		s3.Region = v
	}
	if v := strings.TrimSpace(rs.S3.Bucket); v != "" {
		s3.Bucket = v
	}
	if v := strings.TrimSpace(rs.S3.AccessKeyID); v != "" {
		s3.AccessKeyID = v
	}
	if v := strings.TrimSpace(rs.S3.SecretAccessKey); v != "" {
		s3.SecretAccessKey = v
	}
	if v := strings.TrimSpace(rs.S3.CustomDomain); v != "" {
		s3.CustomDomain = v
	}
	if v := strings.TrimSpace(rs.S3.Prefix); v != "" {
		s3.Prefix = v
	}
	if rs.S3.PathStyle != nil {
		s3.PathStyle = *rs.S3.PathStyle
	}
	cfg.S3 = s3

	return normalizeStorageConfig(cfg)
}

func applyRawMailConfig(current MailConfig, raw rawAppConfig) MailConfig {
	cfg := current
	rm := raw.Mail

	if rm.Enable != nil {
		cfg.Enable = *rm.Enable
	}
	if v := strings.TrimSpace(rm.Host); v != "" {
		cfg.Host = v
	}
	if rm.Port != 0 {
		cfg.Port = rm.Port
	}
	if v := strings.TrimSpace(rm.User); v != "" {
		cfg.User = v
	}
	if rm.Pass != "" {
		cfg.Pass = rm.Pass
	}
	if v := strings.TrimSpace(rm.From); v != "" {
		cfg.From = v
	}
	if v := strings.TrimSpace(rm.ReplyTo); v != "" {
		cfg.ReplyTo = v
	}
	if v := strings.TrimSpace(rm.ResendKey); v != "" {
		cfg.ResendKey = v
	}
	if v := strings.TrimSpace(rm.SiteName); v != "" {
		cfg.SiteName = v
	}
	if v := strings.TrimSpace(rm.ReviewURL); v != "" {
		cfg.ReviewURL = v
	}
	switch {
	case rm.AdminEmails != nil:
		cfg.AdminEmails = normalizeList(rm.AdminEmails)
	case raw.AdminEmails != nil:
		cfg.AdminEmails = normalizeList(raw.AdminEmails)
	}
	return cfg
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveDir("", "logs")
	}
	return ResolveDir(c.Paths.Logs, "logs")
}

func (c *AppConfig) UploadDir() string {
	if c == nil {
		return ResolveDir("", "uploads")
	}
	return ResolveDir(c.Paths.Uploads, "uploads")
}

// MaxUploadBytes is the per-file upload limit.
func (c *AppConfig) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) * 1024 * 1024
}

// ProvisionalTTL is how long an upload may stay uncommitted before reconciliation removes it.
func (c *AppConfig) ProvisionalTTL() time.Duration {
	return time.Duration(c.Storage.ProvisionalTTLMinutes) * time.Minute
}

func (c *AppConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.Storage.ReconcileIntervalMinutes) * time.Minute
}

func (c *AppConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
