package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	LogLevel       string   `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON        bool     `yaml:"log_json"`
	HTTPPort       int      `yaml:"http_port" validate:"min=1,max=65535"`
	FrontendUrl    string   `yaml:"frontend_url" validate:"required,url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SecureCookies  bool     `yaml:"secure_cookies"`
	HashSaltRounds int      `yaml:"hash_salt_rounds" validate:"min=5,max=12"` // bcrypt cost

	Token    Token          `yaml:"token"`
	Password PasswordPolicy `yaml:"password"`
	Outbox   Outbox         `yaml:"outbox"`

	BlacklistCacheInterval time.Duration `yaml:"blacklist_cache_interval" validate:"gt=0"`
}

type Token struct {
	AccessTTL            time.Duration `yaml:"access_ttl" validate:"min=1h"`
	RefreshTTL           time.Duration `yaml:"refresh_ttl" validate:"min=24h"`
	EmailVerificationTTL time.Duration `yaml:"email_verification_ttl" validate:"min=1h"`
	ResetPasswordTTL     time.Duration `yaml:"reset_password_ttl" validate:"min=30m"`
}

type PasswordPolicy struct {
	MinLength int `yaml:"min_length" validate:"min=1"`
	MaxLength int `yaml:"max_length" validate:"gtefield=MinLength,max=72"` // bcrypt ignores bytes past 72
}

type Outbox struct {
	Interval    time.Duration `yaml:"interval" validate:"gt=0"`
	BatchSize   int           `yaml:"batch_size" validate:"min=1"`
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1"`
}

type Private struct {
	JwtKey string `yaml:"jwt_key" validate:"required"`
	Pg     Pg     `yaml:"pg"`
	Email  Email  `yaml:"email"`
}

type Pg struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password"`
	Dbname          string        `yaml:"dbname" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server" validate:"required"`
	SMTPPort   int    `yaml:"smtp_port" validate:"min=1,max=65535"`
	Username   string `yaml:"username" validate:"required"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"` // seconds
}

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) AccessTTL() time.Duration {
	return s.Public.Token.AccessTTL
}

// applyDefaults fills optional knobs that were left out of the files.
func (s *Config) applyDefaults() {
	if s.Public.LogLevel == "" {
		s.Public.LogLevel = "info"
	}
	if s.Public.HTTPPort == 0 {
		s.Public.HTTPPort = 8080
	}
	if s.Public.Password.MinLength == 0 {
		s.Public.Password.MinLength = 8
	}
	if s.Public.Password.MaxLength == 0 {
		s.Public.Password.MaxLength = 64
	}
	if s.Public.Outbox.Interval == 0 {
		s.Public.Outbox.Interval = 5 * time.Second
	}
	if s.Public.Outbox.BatchSize == 0 {
		s.Public.Outbox.BatchSize = 50
	}
	if s.Public.Outbox.MaxAttempts == 0 {
		s.Public.Outbox.MaxAttempts = 5
	}
	if s.Public.BlacklistCacheInterval == 0 {
		s.Public.BlacklistCacheInterval = 30 * time.Second
	}
	if s.Private.Pg.MaxOpenConns == 0 {
		s.Private.Pg.MaxOpenConns = 25
	}
	if s.Private.Pg.MaxIdleConns == 0 {
		s.Private.Pg.MaxIdleConns = 10
	}
	if s.Private.Pg.ConnMaxLifetime == 0 {
		s.Private.Pg.ConnMaxLifetime = 5 * time.Minute
	}
}

func (s *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func loadPath(configPath string, output interface{}) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("can't read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(configFile, output); err != nil {
		return fmt.Errorf("can't unmarshal config file %s: %w", configPath, err)
	}
	return nil
}

// Load reads public.yaml and private.yaml from configFolder, fills defaults
// and validates the result.
func Load(configFolder string) (*Config, error) {
	var public Public
	if err := loadPath(path.Join(configFolder, "public.yaml"), &public); err != nil {
		return nil, err
	}

	var private Private
	if err := loadPath(path.Join(configFolder, "private.yaml"), &private); err != nil {
		return nil, err
	}

	cfg := &Config{Public: public, Private: private}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad(configFolder string) *Config {
	cfg, err := Load(configFolder)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}
