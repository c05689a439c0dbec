package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		RequestTimeout  time.Duration `mapstructure:"request_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Database struct {
		Driver    string `mapstructure:"driver"`
		Path      string `mapstructure:"path"`
		DSN       string `mapstructure:"dsn"`
		MongoURI  string `mapstructure:"mongo_uri"`
		MongoName string `mapstructure:"mongo_name"`
	} `mapstructure:"database"`
	Auth struct {
		JWTSecret        string        `mapstructure:"jwt_secret"`
		TokenTTL         time.Duration `mapstructure:"token_ttl"`
		BcryptCost       int           `mapstructure:"bcrypt_cost"`
		EnforceOwnership bool          `mapstructure:"enforce_ownership"`
	} `mapstructure:"auth"`
	Blog struct {
		PlaceholderImage string `mapstructure:"placeholder_image"`
	} `mapstructure:"blog"`
	RateLimit struct {
		SignupPerMinute int    `mapstructure:"signup_per_minute"`
		LoginPerMinute  int    `mapstructure:"login_per_minute"`
		RedisAddr       string `mapstructure:"redis_addr"`
		RedisPassword   string `mapstructure:"redis_password"`
		RedisDB         int    `mapstructure:"redis_db"`
	} `mapstructure:"ratelimit"`
	Storage struct {
		Bucket          string `mapstructure:"bucket"`
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		PublicBaseURL   string `mapstructure:"public_base_url"`
		MaxImageBytes   int64  `mapstructure:"max_image_bytes"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	} `mapstructure:"storage"`
	AWS struct {
		Profile string `mapstructure:"profile"`
	} `mapstructure:"aws"`
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Load reads configuration from environment variables and optional config files.
// A .env file in the working directory is applied first without overriding
// variables that are already set.
func Load() (Config, error) {
	_ = gotenv.Load() // optional file

	v := viper.New()
	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// every key needs a default for AutomaticEnv to reach it through Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/blog.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.mongo_uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("database.mongo_name", "blog")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.enforce_ownership", false)

	v.SetDefault("blog.placeholder_image", "https://placehold.co/600x400?text=Blog")

	v.SetDefault("ratelimit.signup_per_minute", 10)
	v.SetDefault("ratelimit.login_per_minute", 20)
	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("ratelimit.redis_password", "")
	v.SetDefault("ratelimit.redis_db", 0)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.key_prefix", "blog-images")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.max_image_bytes", 5<<20)
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")

	v.SetDefault("aws.profile", "")
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth jwt secret is required"))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database dsn is required for postgres"))
		}
	case DriverMongo:
		if c.Database.MongoURI == "" || c.Database.MongoName == "" {
			errs = append(errs, errors.New("mongo uri and name are required for mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth token ttl must be positive"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server request timeout must be positive"))
	}
	return errors.Join(errs...)
}
