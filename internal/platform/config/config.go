package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Tenancy   TenancyConfig   `mapstructure:"tenancy"`
	Session   SessionConfig   `mapstructure:"session"`
	Google    GoogleConfig    `mapstructure:"google"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Email     EmailConfig     `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// RedisConfig backs the session credential store. An empty Addr selects the
// in-process store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	AccessSecret       string        `mapstructure:"access_secret"`
	RefreshSecret      string        `mapstructure:"refresh_secret"`
	AccessTokenTTL     time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	ResetTokenTTL      time.Duration `mapstructure:"reset_token_ttl"`
	ActivationTokenTTL time.Duration `mapstructure:"activation_token_ttl"`
}

// TenancyConfig selects how a request names its tenant: "slug" reads the
// :slug path segment, "domain" reads the Host header. CacheTTL of zero
// disables the tenant lookup cache.
type TenancyConfig struct {
	Mode       string        `mapstructure:"mode"`
	SignInPath string        `mapstructure:"sign_in_path"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// SessionConfig covers browser sessions. A non-empty RemoteRefreshURL sends
// refreshes to another portal instead of this process.
type SessionConfig struct {
	CookieName           string        `mapstructure:"cookie_name"`
	CookieSecure         bool          `mapstructure:"cookie_secure"`
	RemoteRefreshURL     string        `mapstructure:"remote_refresh_url"`
	RemoteRefreshTimeout time.Duration `mapstructure:"remote_refresh_timeout"`
}

type GoogleConfig struct {
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	RedirectURI   string        `mapstructure:"redirect_uri"`
	TokenURL      string        `mapstructure:"token_url"`
	JWKSURL       string        `mapstructure:"jwks_url"`
	VerifyIDToken bool          `mapstructure:"verify_id_token"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	Region        string        `mapstructure:"region"`
	Bucket        string        `mapstructure:"bucket"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
}

type EmailConfig struct {
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	AppURL      string `mapstructure:"app_url"`
}

type RateLimitConfig struct {
	AuthPerMinute int `mapstructure:"auth_per_minute"`
}

type JobsConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("jwt.access_token_ttl", time.Hour)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.reset_token_ttl", 7*time.Hour)
	v.SetDefault("jwt.activation_token_ttl", time.Hour)
	v.SetDefault("tenancy.mode", "slug")
	v.SetDefault("tenancy.sign_in_path", "/auth/signin")
	v.SetDefault("tenancy.cache_ttl", 30*time.Second)
	v.SetDefault("session.cookie_name", "portal_session")
	v.SetDefault("session.remote_refresh_timeout", 10*time.Second)
	v.SetDefault("google.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("google.jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("google.verify_id_token", true)
	v.SetDefault("google.timeout", 10*time.Second)
	v.SetDefault("storage.bucket", "admin")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.url_expiry", time.Hour)
	v.SetDefault("rate_limit.auth_per_minute", 30)
	v.SetDefault("jobs.sweep_interval", 15*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
