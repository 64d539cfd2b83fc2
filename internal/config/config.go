package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	OracleProviderOllama = "ollama"
	OracleProviderOpenAI = "openai"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Oracle        OracleConfig
	UI            UIConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	// SystemDatabase is the catalog the server probe connects to before a
	// user database has been chosen.
	SystemDatabase         string
	Encrypt                string
	TrustServerCertificate bool
	AppName                string
	DialTimeout            time.Duration
	QueryTimeout           time.Duration
	MaxResultRows          int
}

type OracleConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	SQL      SamplingConfig
	Summary  SamplingConfig
}

// SamplingConfig leaves a field nil when the provider default should apply.
type SamplingConfig struct {
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int
	Stop        []string
}

type UIConfig struct {
	TableGridColumns int
	SecureCookies    bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	lookup := LookupFunc(os.LookupEnv)
	if path, ok := os.LookupEnv("ASKDB_CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		fileLookup, err := FileLookup(strings.TrimSpace(path))
		if err != nil {
			return Config{}, err
		}
		lookup = ChainLookup(lookup, fileLookup)
	}
	return Load(serviceName, lookup)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("ASKDB_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ASKDB_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "ASKDB_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "ASKDB_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "ASKDB_DB_SYSTEM_DATABASE", &cfg.Database.SystemDatabase) },
		func() error { return applyString(lookup, "ASKDB_DB_ENCRYPT", &cfg.Database.Encrypt) },
		func() error {
			return applyBool(lookup, "ASKDB_DB_TRUST_SERVER_CERTIFICATE", &cfg.Database.TrustServerCertificate)
		},
		func() error { return applyString(lookup, "ASKDB_DB_APP_NAME", &cfg.Database.AppName) },
		func() error { return applyDuration(lookup, "ASKDB_DB_DIAL_TIMEOUT", &cfg.Database.DialTimeout) },
		func() error { return applyDuration(lookup, "ASKDB_DB_QUERY_TIMEOUT", &cfg.Database.QueryTimeout) },
		func() error { return applyInt(lookup, "ASKDB_DB_MAX_RESULT_ROWS", &cfg.Database.MaxResultRows) },
		func() error { return applyString(lookup, "ASKDB_ORACLE_PROVIDER", &cfg.Oracle.Provider) },
		func() error { return applyString(lookup, "ASKDB_ORACLE_BASE_URL", &cfg.Oracle.BaseURL) },
		func() error { return applyString(lookup, "ASKDB_ORACLE_API_KEY", &cfg.Oracle.APIKey) },
		func() error { return applyString(lookup, "ASKDB_ORACLE_MODEL", &cfg.Oracle.Model) },
		func() error { return applyDuration(lookup, "ASKDB_ORACLE_TIMEOUT", &cfg.Oracle.Timeout) },
		func() error { return applySampling(lookup, "ASKDB_ORACLE_SQL", &cfg.Oracle.SQL) },
		func() error { return applySampling(lookup, "ASKDB_ORACLE_SUMMARY", &cfg.Oracle.Summary) },
		func() error { return applyInt(lookup, "ASKDB_UI_TABLE_GRID_COLUMNS", &cfg.UI.TableGridColumns) },
		func() error { return applyBool(lookup, "ASKDB_UI_SECURE_COOKIES", &cfg.UI.SecureCookies) },
		func() error { return applyBool(lookup, "ASKDB_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "ASKDB_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Oracle.Provider = strings.ToLower(cfg.Oracle.Provider)
	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Database.SystemDatabase == "" {
		return Config{}, fmt.Errorf("system database is required")
	}
	if cfg.Database.MaxResultRows < 0 {
		return Config{}, fmt.Errorf("invalid ASKDB_DB_MAX_RESULT_ROWS: must not be negative")
	}
	switch cfg.Oracle.Provider {
	case OracleProviderOllama, OracleProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("invalid ASKDB_ORACLE_PROVIDER: %q", cfg.Oracle.Provider)
	}
	if cfg.Oracle.Provider == OracleProviderOpenAI && cfg.Oracle.APIKey == "" {
		return Config{}, fmt.Errorf("ASKDB_ORACLE_API_KEY is required for provider %q", OracleProviderOpenAI)
	}
	if cfg.UI.TableGridColumns <= 0 {
		return Config{}, fmt.Errorf("invalid ASKDB_UI_TABLE_GRID_COLUMNS: must be positive")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "askdb-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			SystemDatabase: "master",
			Encrypt:        "disable",
			AppName:        "askdb",
			DialTimeout:    15 * time.Second,
			QueryTimeout:   0,
			MaxResultRows:  0,
		},
		Oracle: OracleConfig{
			Provider: OracleProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "llama3",
			Timeout:  2 * time.Minute,
		},
		UI: UIConfig{
			TableGridColumns: 5,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Database.Encrypt = "true"
		cfg.UI.SecureCookies = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyOptionalInt(lookup LookupFunc, key string, dst **int) error {
	var value int
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := applyInt(lookup, key, &value); err != nil {
		return err
	}
	*dst = &value
	return nil
}

func applyOptionalFloat(lookup LookupFunc, key string, dst **float64) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = &value
	return nil
}

// applyList splits on "|" so stop sequences may contain commas.
func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, "|") {
		if part == "" {
			continue
		}
		values = append(values, strings.ReplaceAll(part, `\n`, "\n"))
	}
	*dst = values
	return nil
}

func applySampling(lookup LookupFunc, prefix string, dst *SamplingConfig) error {
	if err := applyOptionalFloat(lookup, prefix+"_TEMPERATURE", &dst.Temperature); err != nil {
		return err
	}
	if err := applyOptionalFloat(lookup, prefix+"_TOP_P", &dst.TopP); err != nil {
		return err
	}
	if err := applyOptionalInt(lookup, prefix+"_TOP_K", &dst.TopK); err != nil {
		return err
	}
	if err := applyOptionalInt(lookup, prefix+"_MAX_TOKENS", &dst.MaxTokens); err != nil {
		return err
	}
	return applyList(lookup, prefix+"_STOP", &dst.Stop)
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
