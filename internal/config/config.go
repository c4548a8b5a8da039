package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Issuer   IssuerConfig   `json:"issuer"`
	Oracles  OraclesConfig  `json:"oracles"`
	Feeder   FeederConfig   `json:"feeder"`
	Events   EventsConfig   `json:"events"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
	// AllowHeaderIdentity trusts X-Caller-Address. Local development only.
	AllowHeaderIdentity bool          `json:"allow_header_identity"`
	TokenTTL            time.Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// IssuerConfig configures the credit issuer.
type IssuerConfig struct {
	Admin    string `json:"admin"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Scale    uint64 `json:"scale"`
	MintUnit uint64 `json:"mint_unit"`
}

// OraclesConfig holds the whitelist admin of each oracle. Empty falls back to
// the issuer admin.
type OraclesConfig struct {
	AverageAdmin string `json:"average_admin"`
	ProjectAdmin string `json:"project_admin"`
}

// FeederConfig configures the scheduled average emissions factor import.
type FeederConfig struct {
	Enabled  bool          `json:"enabled"`
	Schedule string        `json:"schedule"`
	URL      string        `json:"url"`
	Source   string        `json:"source"`
	Timeout  time.Duration `json:"timeout"`
}

// EventsConfig configures the optional SNS fan-out.
type EventsConfig struct {
	SNSTopicARN string `json:"sns_topic_arn"`
	AWSRegion   string `json:"aws_region"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         DriverPostgres,
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "carbon_credit_issuer",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Security: SecurityConfig{
			TokenTTL: time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Issuer: IssuerConfig{
			Name:     "CarbonCreditNFT",
			Symbol:   "CCNFT",
			Scale:    1000,
			MintUnit: 1000,
		},
		Feeder: FeederConfig{
			Schedule: "@every 1h",
			Timeout:  10 * time.Second,
		},
	}

	// Load from file if exists
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if allow := os.Getenv("ALLOW_HEADER_IDENTITY"); allow != "" {
		if b, err := strconv.ParseBool(allow); err == nil {
			config.Security.AllowHeaderIdentity = b
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if admin := os.Getenv("ISSUER_ADMIN"); admin != "" {
		config.Issuer.Admin = admin
	}
	if url := os.Getenv("FEEDER_URL"); url != "" {
		config.Feeder.URL = url
	}
	if source := os.Getenv("FEEDER_SOURCE"); source != "" {
		config.Feeder.Source = source
	}
	if topic := os.Getenv("EVENTS_SNS_TOPIC_ARN"); topic != "" {
		config.Events.SNSTopicARN = topic
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Events.AWSRegion = region
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return errors.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if !common.IsHexAddress(c.Issuer.Admin) {
		return errors.Errorf("issuer.admin %q is not an address", c.Issuer.Admin)
	}
	for name, addr := range map[string]string{
		"oracles.average_admin": c.Oracles.AverageAdmin,
		"oracles.project_admin": c.Oracles.ProjectAdmin,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return errors.Errorf("%s %q is not an address", name, addr)
		}
	}
	if c.Issuer.Scale == 0 {
		return errors.New("issuer.scale must be greater than zero")
	}
	if c.Issuer.MintUnit == 0 {
		return errors.New("issuer.mint_unit must be greater than zero")
	}
	if strings.TrimSpace(c.Security.JWTSecret) == "" && !c.Security.AllowHeaderIdentity {
		return errors.New("security.jwt_secret is required unless allow_header_identity is set")
	}
	if c.Feeder.Enabled {
		if c.Feeder.URL == "" {
			return errors.New("feeder.url is required when the feeder is enabled")
		}
		if !common.IsHexAddress(c.Feeder.Source) {
			return errors.Errorf("feeder.source %q is not an address", c.Feeder.Source)
		}
	}
	return nil
}

// AverageAdmin returns the whitelist admin of the average emissions oracle.
func (c *Config) AverageAdmin() common.Address {
	if c.Oracles.AverageAdmin != "" {
		return common.HexToAddress(c.Oracles.AverageAdmin)
	}
	return common.HexToAddress(c.Issuer.Admin)
}

// ProjectAdmin returns the whitelist admin of the project emissions oracle.
func (c *Config) ProjectAdmin() common.Address {
	if c.Oracles.ProjectAdmin != "" {
		return common.HexToAddress(c.Oracles.ProjectAdmin)
	}
	return common.HexToAddress(c.Issuer.Admin)
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
