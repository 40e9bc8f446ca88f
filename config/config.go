package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the top-level process configuration, loaded from an optional
// config.json file with environment-variable overrides layered on top.
type Config struct {
	BinanceConfig   BinanceConfig   `json:"binance"`
	StrategyConfig  StrategyConfig  `json:"strategy"`
	RiskConfig      RiskConfig      `json:"risk"`
	SweepConfig     SweepConfig     `json:"sweep"`
	SchedulerConfig SchedulerConfig `json:"scheduler"`
	LoggingConfig   LoggingConfig   `json:"logging"`
	ServerConfig    ServerConfig    `json:"server"`
	AuthConfig      AuthConfig      `json:"auth"`
	VaultConfig     VaultConfig     `json:"vault"`
	RedisConfig     RedisConfig     `json:"redis"`
	PostgresConfig  PostgresConfig  `json:"postgres"`
}

// BinanceConfig configures the market-data CandleSource collaborator.
type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	WSBaseURL string `json:"ws_base_url"`
	TestNet   bool   `json:"testnet"`
}

// StrategyConfig carries the subset of the Vegas strategy's tunables that
// are exposed to operators; everything else uses strategy.DefaultConfig.
type StrategyConfig struct {
	Instruments []string `json:"instruments"`
	Period      string   `json:"period"`
	MinKLineNum int      `json:"min_k_line_num"`
	MinTotalWeight float64 `json:"min_total_weight"`
}

// RiskConfig mirrors risk.Config's operator-tunable fields.
type RiskConfig struct {
	MaxLossPercent        float64 `json:"max_loss_percent"`
	ProfitRatio           float64 `json:"profit_ratio"`
	OneKlineDiffTrailing  bool    `json:"one_kline_diff_trailing_stop"`
	TrailingArmFactorLong  float64 `json:"trailing_arm_factor_long"`
	TrailingArmFactorShort float64 `json:"trailing_arm_factor_short"`
}

// SweepConfig configures the resumable parameter-sweep driver.
type SweepConfig struct {
	Enabled           bool `json:"enabled"`
	SnapshotInterval  int  `json:"snapshot_interval_combinations"`
	WorkerCount       int  `json:"worker_count"`
}

// SchedulerConfig configures the live-tick scheduler's cadence and
// graceful-shutdown drain behavior.
type SchedulerConfig struct {
	TickInterval        time.Duration `json:"tick_interval"`
	ShutdownDrainTimeout time.Duration `json:"shutdown_drain_timeout"`
}

// LoggingConfig configures the zerolog-backed logger.
type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// ServerConfig holds HTTP server configuration for the status/admin API.
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig holds admin-API authentication configuration.
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
	MaxLoginAttempts    int           `json:"max_login_attempts"`
	LockoutDuration     time.Duration `json:"lockout_duration"`
	OperatorUsername    string        `json:"operator_username"`
	OperatorPasswordHash string       `json:"operator_password_hash"` // bcrypt hash; set via AUTH_OPERATOR_PASSWORD_HASH
}

// VaultConfig holds HashiCorp Vault configuration for exchange credentials.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
}

// RedisConfig holds Redis configuration for the Candle Cache collaborator.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// PostgresConfig holds the Persistence collaborator's connection pool.
type PostgresConfig struct {
	DSN          string `json:"dsn"`
	MaxConns     int    `json:"max_conns"`
	MinConns     int    `json:"min_conns"`
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Note: BINANCE_API_KEY and BINANCE_SECRET_KEY are read preferentially from
// Vault via internal/secrets; the environment values here are a fallback
// for local/dev runs only.
func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	if cfg.BinanceConfig.BaseURL == "" {
		cfg.BinanceConfig.BaseURL = "https://fapi.binance.com"
	}
	cfg.BinanceConfig.WSBaseURL = getEnvOrDefault("BINANCE_WS_BASE_URL", cfg.BinanceConfig.WSBaseURL)
	if cfg.BinanceConfig.WSBaseURL == "" {
		cfg.BinanceConfig.WSBaseURL = "wss://fstream.binance.com"
	}
	cfg.BinanceConfig.TestNet = getEnvOrDefault("BINANCE_TESTNET", "false") == "true"
	cfg.BinanceConfig.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.BinanceConfig.APIKey)
	cfg.BinanceConfig.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.BinanceConfig.SecretKey)

	cfg.StrategyConfig.Period = getEnvOrDefault("STRATEGY_PERIOD", cfg.StrategyConfig.Period)
	if cfg.StrategyConfig.Period == "" {
		cfg.StrategyConfig.Period = "1H"
	}
	cfg.StrategyConfig.MinKLineNum = getEnvIntOrDefault("STRATEGY_MIN_K_LINE_NUM", 300)
	cfg.StrategyConfig.MinTotalWeight = getEnvFloatOrDefault("STRATEGY_MIN_TOTAL_WEIGHT", 2.0)

	cfg.RiskConfig.MaxLossPercent = getEnvFloatOrDefault("RISK_MAX_LOSS_PERCENT", 0.02)
	cfg.RiskConfig.ProfitRatio = getEnvFloatOrDefault("RISK_PROFIT_RATIO", 1.5)
	cfg.RiskConfig.OneKlineDiffTrailing = getEnvOrDefault("RISK_ONE_KLINE_DIFF_TRAILING_STOP", "true") == "true"
	cfg.RiskConfig.TrailingArmFactorLong = getEnvFloatOrDefault("RISK_TRAILING_ARM_FACTOR_LONG", 0.99564)
	cfg.RiskConfig.TrailingArmFactorShort = getEnvFloatOrDefault("RISK_TRAILING_ARM_FACTOR_SHORT", 1.00436)

	cfg.SweepConfig.Enabled = getEnvOrDefault("SWEEP_ENABLED", "false") == "true"
	cfg.SweepConfig.SnapshotInterval = getEnvIntOrDefault("SWEEP_SNAPSHOT_INTERVAL", 25)
	cfg.SweepConfig.WorkerCount = getEnvIntOrDefault("SWEEP_WORKER_COUNT", 4)

	cfg.SchedulerConfig.TickInterval = getEnvDurationOrDefault("SCHEDULER_TICK_INTERVAL", time.Minute)
	cfg.SchedulerConfig.ShutdownDrainTimeout = getEnvDurationOrDefault("SCHEDULER_SHUTDOWN_DRAIN_TIMEOUT", 30*time.Second)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "false") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)
	cfg.AuthConfig.MaxLoginAttempts = getEnvIntOrDefault("AUTH_MAX_LOGIN_ATTEMPTS", 5)
	cfg.AuthConfig.LockoutDuration = getEnvDurationOrDefault("AUTH_LOCKOUT_DURATION", 15*time.Minute)
	cfg.AuthConfig.OperatorUsername = getEnvOrDefault("AUTH_OPERATOR_USERNAME", "operator")
	cfg.AuthConfig.OperatorPasswordHash = getEnvOrDefault("AUTH_OPERATOR_PASSWORD_HASH", cfg.AuthConfig.OperatorPasswordHash)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "vegasstrategy/exchange-keys")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	cfg.PostgresConfig.DSN = getEnvOrDefault("POSTGRES_DSN", cfg.PostgresConfig.DSN)
	cfg.PostgresConfig.MaxConns = getEnvIntOrDefault("POSTGRES_MAX_CONNS", 10)
	cfg.PostgresConfig.MinConns = getEnvIntOrDefault("POSTGRES_MIN_CONNS", 2)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
