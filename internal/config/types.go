package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Timezone       string                `yaml:"timezone"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Mongo          MongoRuntimeConfig    `yaml:"mongo"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Storage        StorageConfig         `yaml:"storage"`
	Mail           MailConfig            `yaml:"mail"`
	Moderation     ModerationConfig      `yaml:"moderation"`
	Publications   PublicationsConfig    `yaml:"publications"`
	RateLimit      RateLimitConfig       `yaml:"rate_limit"`

	DSN      string `yaml:"-"` // MySQL DSN derived from Database
	RedisURL string `yaml:"-"`
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Uploads string `yaml:"uploads"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"` // mysql | mongo
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type MongoRuntimeConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Params   map[string]string `yaml:"params"`
}

type StorageConfig struct {
	Driver                   string   `yaml:"driver"` // local | s3
	PublicBaseURL            string   `yaml:"public_base_url"`
	MaxUploadMB              int      `yaml:"max_upload_mb"`
	AllowedFormats           []string `yaml:"allowed_formats"`
	ProvisionalTTLMinutes    int      `yaml:"provisional_ttl_minutes"`
	ReconcileIntervalMinutes int      `yaml:"reconcile_interval_minutes"`
	S3                       S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CustomDomain    string `yaml:"custom_domain"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
}

type MailConfig struct {
	Enable      bool     `yaml:"enable"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	User        string   `yaml:"user"`
	Pass        string   `yaml:"pass"`
	From        string   `yaml:"from"`
	ReplyTo     string   `yaml:"reply_to"`
	ResendKey   string   `yaml:"resend_key"`
	AdminEmails []string `yaml:"admin_emails"`
	SiteName    string   `yaml:"site_name"`
	ReviewURL   string   `yaml:"review_url"`
}

type ModerationConfig struct {
	MaxEdits           int  `yaml:"max_edits"`
	ChargeNoopApproval bool `yaml:"charge_noop_approval"`
	StrictFields       bool `yaml:"strict_fields"`
}

type PublicationsConfig struct {
	DefaultCategory string `yaml:"default_category"`
}

type RateLimitConfig struct {
	Max           int `yaml:"max"`
	WindowSeconds int `yaml:"window_seconds"`
}

type rawAppConfig struct {
	Port               int                 `yaml:"port"`
	Env                string              `yaml:"env"`
	NodeEnv            string              `yaml:"node_env"`
	AllowedOrigins     []string            `yaml:"allowed_origins"`
	CORSAllowedOrigins []string            `yaml:"cors_allowed_origins"`
	JWTSecret          string              `yaml:"jwt_secret"`
	Timezone           string              `yaml:"timezone"`
	TZ                 string              `yaml:"tz"`
	Paths              rawPathsConfig      `yaml:"paths"`
	LogDir             string              `yaml:"log_dir"`
	UploadDir          string              `yaml:"upload_dir"`
	DSN                string              `yaml:"dsn"`
	DatabaseURL        string              `yaml:"database_url"`
	Database           rawDatabaseConfig   `yaml:"database"`
	Mongo              rawMongoConfig      `yaml:"mongo"`
	MongoURI           string              `yaml:"mongo_uri"`
	RedisURL           string              `yaml:"redis_url"`
	Redis              rawRedisConfig      `yaml:"redis"`
	Storage            rawStorageConfig    `yaml:"storage"`
	PublicBaseURL      string              `yaml:"public_base_url"`
	Mail               rawMailConfig       `yaml:"mail"`
	AdminEmails        []string            `yaml:"admin_emails"`
	Moderation         rawModerationConfig `yaml:"moderation"`
	Publications       PublicationsConfig  `yaml:"publications"`
	RateLimit          rawRateLimitConfig  `yaml:"rate_limit"`
}

type rawPathsConfig struct {
	Logs    string `yaml:"logs"`
	Uploads string `yaml:"uploads"`
}

type rawDatabaseConfig struct {
	Driver    string            `yaml:"driver"`
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawMongoConfig struct {
	URI      string `yaml:"uri"`
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Params   map[string]string `yaml:"params"`
}

type rawStorageConfig struct {
	Driver                   string      `yaml:"driver"`
	PublicBaseURL            string      `yaml:"public_base_url"`
	MaxUploadMB              int         `yaml:"max_upload_mb"`
	AllowedFormats           []string    `yaml:"allowed_formats"`
	ProvisionalTTLMinutes    int         `yaml:"provisional_ttl_minutes"`
	ReconcileIntervalMinutes int         `yaml:"reconcile_interval_minutes"`
	S3                       rawS3Config `yaml:"s3"`
}

type rawS3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CustomDomain    string `yaml:"custom_domain"`
	Prefix          string `yaml:"prefix"`
	PathStyle       *bool  `yaml:"path_style"`
}

type rawMailConfig struct {
	Enable      *bool    `yaml:"enable"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	User        string   `yaml:"user"`
	Pass        string   `yaml:"pass"`
	From        string   `yaml:"from"`
	ReplyTo     string   `yaml:"reply_to"`
	ResendKey   string   `yaml:"resend_key"`
	AdminEmails []string `yaml:"admin_emails"`
	SiteName    string   `yaml:"site_name"`
	ReviewURL   string   `yaml:"review_url"`
}

type rawModerationConfig struct {
	MaxEdits           int   `yaml:"max_edits"`
	ChargeNoopApproval *bool `yaml:"charge_noop_approval"`
	StrictFields       *bool `yaml:"strict_fields"`
}

type rawRateLimitConfig struct {
	Max           int `yaml:"max"`
	WindowSeconds int `yaml:"window_seconds"`
}
