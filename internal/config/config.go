package config

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	Port                  string
	DatabaseDSN           string
	JWTSecret             string
	JWTIssuer             string
	JWTAudience           string
	Env                   string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	OwnerUsername         string
	OwnerPassword         string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func Load() Config {
	return Config{
		Port:                  getenv("APP_PORT", "8080"),
		DatabaseDSN:           getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=shopadmin port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:             getenv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:             getenv("JWT_ISSUER", "shopadmin"),
		JWTAudience:           getenv("JWT_AUDIENCE", "shopadmin-web"),
		Env:                   getenv("APP_ENV", "dev"),
		AccessTokenTTLMinutes: getenvInt("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTLDays:   getenvInt("REFRESH_TOKEN_TTL_DAYS", 7),
		OwnerUsername:         getenv("OWNER_USERNAME", ""),
		OwnerPassword:         getenv("OWNER_PASSWORD", ""),
	}
}

// Validate 启动前检查配置，防止把开发默认值带到生产环境。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: database dsn is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == "dev-secret-change-me" {
		return errors.New("config: default jwt secret is not allowed outside dev")
	}
	return nil
}
