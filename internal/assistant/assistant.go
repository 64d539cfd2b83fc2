package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
)

const executionErrorPrefix = "Error executing SQL: "

var ErrEmptyQuestion = errors.New("question is required")

// SummaryError reports a failed summary call. It is logged, never returned
// from Ask.
type SummaryError struct {
	Err error
}

func (e *SummaryError) Error() string {
	return fmt.Sprintf("summarize result: %v", e.Err)
}

func (e *SummaryError) Unwrap() error {
	return e.Err
}

type Config struct {
	SQL      nl2sql.Options
	Summary  nl2sql.Options
	RowLimit int
}

// Assistant turns one question into a history record: generate, sanitize,
// execute, summarize.
type Assistant struct {
	oracle nl2sql.Oracle
	engine query.Engine
	config Config
	logger *slog.Logger
}

func New(oracle nl2sql.Oracle, engine query.Engine, cfg Config, logger *slog.Logger) *Assistant {
	return &Assistant{
		oracle: oracle,
		engine: engine,
		config: cfg,
		logger: observability.LoggerOrDiscard(logger),
	}
}

// Ask runs the pipeline against tc. Generation failures are returned and
// produce no record; execution failures produce a failed record and a nil
// error.
func (a *Assistant) Ask(ctx context.Context, profile catalog.Profile, tc nl2sql.TableContext, question string) (history.Record, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return history.Record{}, ErrEmptyQuestion
	}
	logger := a.logger.With(
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("database", tc.Database),
		slog.String("table", tc.QualifiedName()),
	)

	sqlText, err := a.generateSQL(ctx, tc, question)
	if err != nil {
		logger.Warn("sql generation failed", slog.Any("error", err))
		return history.Record{}, err
	}

	record := history.Record{
		Question: question,
		SQL:      sqlText,
		Database: tc.Database,
		Table:    tc.Table,
	}

	result, err := a.engine.Execute(ctx, query.Request{
		Profile:  profile,
		Database: tc.Database,
		SQL:      sqlText,
		RowLimit: a.config.RowLimit,
	})
	if err != nil {
		logger.Warn("sql execution failed", slog.String("sql", sqlText), slog.Any("error", err))
		record.Failed = true
		record.Summary = executionErrorPrefix + err.Error()
		return record, nil
	}
	logger.Info("sql executed",
		slog.Int("rows", len(result.Rows)),
		slog.Bool("truncated", result.Truncated),
		slog.Duration("duration", result.Duration),
	)
	record.ResultText = query.FormatResultText(result)

	summary, err := a.summarize(ctx, question, tc, record.ResultText)
	if err != nil {
		logger.Warn("summary failed", slog.Any("error", err))
		return record, nil
	}
	record.Summary = summary
	return record, nil
}

func (a *Assistant) generateSQL(ctx context.Context, tc nl2sql.TableContext, question string) (string, error) {
	start := time.Now()
	raw, err := a.oracle.Generate(ctx, nl2sql.BuildQueryPrompt(tc, question), a.config.SQL)
	if err != nil {
		observability.ObserveOracleCall("sql", observability.OutcomeError, time.Since(start))
		return "", &nl2sql.GenerationError{Err: err}
	}

	sqlText := nl2sql.Sanitize(raw)
	if sqlText != strings.TrimSpace(raw) {
		observability.IncrementSanitizerRewrite()
	}
	if sqlText == "" {
		observability.ObserveOracleCall("sql", observability.OutcomeEmpty, time.Since(start))
		return "", &nl2sql.GenerationError{Err: errors.New("model returned no SQL")}
	}
	observability.ObserveOracleCall("sql", observability.OutcomeOK, time.Since(start))
	return sqlText, nil
}

func (a *Assistant) summarize(ctx context.Context, question string, tc nl2sql.TableContext, resultText string) (string, error) {
	start := time.Now()
	prompt := nl2sql.BuildSummaryPrompt(question, tc.Database, tc.Table, resultText)
	raw, err := a.oracle.Generate(ctx, prompt, a.config.Summary)
	if err != nil {
		observability.ObserveOracleCall("summary", observability.OutcomeError, time.Since(start))
		return "", &SummaryError{Err: err}
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		observability.ObserveOracleCall("summary", observability.OutcomeEmpty, time.Since(start))
		return "", &SummaryError{Err: errors.New("model returned an empty summary")}
	}
	observability.ObserveOracleCall("summary", observability.OutcomeOK, time.Since(start))
	return summary, nil
}
