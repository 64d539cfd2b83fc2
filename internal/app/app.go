// Package app wires configuration into the session graph shared by the
// askdb binaries.
package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdb/askdb/internal/assistant"
	catalogsqlserver "github.com/askdb/askdb/internal/catalog/sqlserver"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	querysqlserver "github.com/askdb/askdb/internal/query/sqlserver"
	"github.com/askdb/askdb/internal/session"
)

// Services groups what a front end needs to drive one session.
type Services struct {
	Oracle  nl2sql.Oracle
	Session *session.Session
	Ledger  *history.Ledger
}

// New builds the oracle, SQL Server dialer, query engine, assistant and
// session from cfg.
func New(cfg config.Config, logger *slog.Logger) (*Services, error) {
	oracle, err := NewOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}

	dbConfig := DBConfig(cfg.Database)
	engine := querysqlserver.NewEngine(dbConfig)
	asker := assistant.New(oracle, engine, assistant.Config{
		SQL:      SamplingOptions(cfg.Oracle.SQL),
		Summary:  SamplingOptions(cfg.Oracle.Summary),
		RowLimit: cfg.Database.MaxResultRows,
	}, logger)

	ledger := history.NewLedger()
	sess := session.New(catalogsqlserver.NewDialer(dbConfig), asker, ledger, session.Options{
		SystemDatabase: cfg.Database.SystemDatabase,
	}, logger)

	return &Services{Oracle: oracle, Session: sess, Ledger: ledger}, nil
}

func NewOracle(cfg config.OracleConfig) (nl2sql.Oracle, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.OracleProviderOllama:
		client, err := nl2sql.NewOllamaClient(nl2sql.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("configure ollama oracle: %w", err)
		}
		return client, nil
	case config.OracleProviderOpenAI:
		client, err := nl2sql.NewOpenAIClient(nl2sql.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("configure openai oracle: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported oracle provider %q", cfg.Provider)
	}
}

func DBConfig(cfg config.DatabaseConfig) catalogsqlserver.DBConfig {
	return catalogsqlserver.DBConfig{
		Encrypt:                cfg.Encrypt,
		TrustServerCertificate: cfg.TrustServerCertificate,
		AppName:                cfg.AppName,
		DialTimeout:            cfg.DialTimeout,
		QueryTimeout:           cfg.QueryTimeout,
	}
}

func SamplingOptions(cfg config.SamplingConfig) nl2sql.Options {
	return nl2sql.Options{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		MaxTokens:   cfg.MaxTokens,
		Stop:        append([]string(nil), cfg.Stop...),
	}
}
