package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const admin = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, uint64(1000), cfg.Issuer.Scale)
	assert.Equal(t, uint64(1000), cfg.Issuer.MintUnit)
	assert.Equal(t, "CCNFT", cfg.Issuer.Symbol)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 9090},
		"database": {"driver": "memory"},
		"issuer": {"admin": "`+admin+`", "mint_unit": 500},
		"security": {"jwt_secret": "from-file"}
	}`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.Security.JWTSecret)
	assert.Equal(t, uint64(500), cfg.Issuer.MintUnit)
	assert.Equal(t, uint64(1000), cfg.Issuer.Scale)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"server":`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		cfg.Issuer.Admin = admin
		cfg.Security.JWTSecret = "secret"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"missing admin", func(c *Config) { c.Issuer.Admin = "" }},
		{"bad oracle admin", func(c *Config) { c.Oracles.ProjectAdmin = "0x12" }},
		{"zero scale", func(c *Config) { c.Issuer.Scale = 0 }},
		{"zero mint unit", func(c *Config) { c.Issuer.MintUnit = 0 }},
		{"no jwt secret", func(c *Config) { c.Security.JWTSecret = "" }},
		{"feeder without url", func(c *Config) { c.Feeder.Enabled = true; c.Feeder.Source = admin }},
		{"feeder without source", func(c *Config) { c.Feeder.Enabled = true; c.Feeder.URL = "http://x" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOracleAdminsFallBackToIssuerAdmin(t *testing.T) {
	cfg := &Config{Issuer: IssuerConfig{Admin: admin}}
	assert.Equal(t, common.HexToAddress(admin), cfg.AverageAdmin())

	other := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	cfg.Oracles.ProjectAdmin = other
	assert.Equal(t, common.HexToAddress(other), cfg.ProjectAdmin())
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", db.GetDatabaseURL())
}
