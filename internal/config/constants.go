package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 5000
	defaultEnv        = "development"

	DriverMySQL = "mysql"
	DriverMongo = "mongo"

	StorageLocal = "local"
	StorageS3    = "s3"

	defaultDBDriver   = DriverMySQL
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "komuness"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "UTC"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultMongoURI   = "mongodb://localhost:27017"
	defaultMongoDB    = "komuness"

	defaultStorageDriver         = StorageLocal
	defaultPublicBaseURL         = "http://localhost:5000"
	defaultMaxUploadMB           = 10
	defaultProvisionalTTLMinutes = 30
	defaultReconcileMinutes      = 10
	defaultS3Region              = "us-east-1"

	defaultMaxEdits = 3

	defaultRateLimitMax    = 50
	defaultRateLimitWindow = 1
)
