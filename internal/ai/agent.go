package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	defaultModel  = "openai/gpt-4.1-mini"
	openRouterURL = "https://openrouter.ai/api/v1"

	// maxRows caps both the generated query and what is sent back to the model.
	maxRows   = 200
	maxTokens = 512
)

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)

// AgentConfig holds configuration for the AI agent.
type AgentConfig struct {
	// ClickHouse connection settings.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// OpenRouter / LLM settings.
	OpenRouterAPIKey string
	// Model name as understood by OpenRouter, e.g. "openai/gpt-4.1-mini".
	Model string

	Logger *logrus.Logger
}

// Agent answers questions about past token operations with NL→SQL over the
// ClickHouse operation log.
type Agent struct {
	llm    llms.Model
	db     querier
	closer func() error
	logger *logrus.Logger
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// NewAgent creates a new Agent with its own ClickHouse and LLM clients.
func NewAgent(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if cfg.ClickHouseAddr == "" {
		return nil, fmt.Errorf("CLICKHOUSE_ADDR is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	// OpenRouter speaks the OpenAI API
	llm, err := openai.New(
		openai.WithToken(cfg.OpenRouterAPIKey),
		openai.WithBaseURL(openRouterURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter LLM: %w", err)
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 30,
		},
	})
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse from AI agent: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.ClickHouseAddr,
		"database": cfg.ClickHouseDatabase,
		"model":    cfg.Model,
	}).Info("initialized AI agent")

	return &Agent{llm: llm, db: db, closer: db.Close, logger: cfg.Logger}, nil
}

// Close closes underlying resources.
func (a *Agent) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// AskResult is the structured result of an Ask call.
type AskResult struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
	Rows   int    `json:"rows"`
}

// Ask generates SQL for question, runs it against the operation log and
// summarises the rows.
func (a *Agent) Ask(ctx context.Context, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	query, err := a.generateSQL(ctx, question)
	if err != nil {
		return nil, err
	}

	rows, err := a.runQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	answer, err := a.summarise(ctx, question, query, rows)
	if err != nil {
		return nil, err
	}
	return &AskResult{SQL: query, Answer: answer, Rows: len(rows)}, nil
}

func (a *Agent) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, llms.WithMaxTokens(maxTokens), llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// generateSQL asks the model for a read-only query over the operation log.
func (a *Agent) generateSQL(ctx context.Context, question string) (string, error) {
	resp, err := a.complete(ctx, fmt.Sprintf(sqlSystemPrompt, operationsSchemaDescription), question)
	if err != nil {
		return "", fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	query := sanitizeSQL(resp)
	if err := validateSQL(query); err != nil {
		return "", err
	}
	query = capLimit(query)

	a.logger.WithField("sql", query).Debug("generated SQL from question")
	return query, nil
}

// runQuery executes the query and returns its rows keyed by column.
func (a *Agent) runQuery(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() && len(out) < maxRows {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (a *Agent) summarise(ctx context.Context, question, query string, rows []map[string]any) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}

	resp, err := a.complete(ctx, summarySystemPrompt, fmt.Sprintf(summaryUserPrompt, question, query, maxRows, data))
	if err != nil {
		return "", fmt.Errorf("LLM summarisation failed: %w", err)
	}
	return strings.TrimSpace(resp), nil
}

// sanitizeSQL strips code fences, a leading "sql" tag and trailing
// semicolons from model output.
func sanitizeSQL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "sql") {
		s = strings.TrimSpace(s[3:])
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

// validateSQL accepts a single SELECT over the operation log and nothing else.
func validateSQL(s string) error {
	if s == "" {
		return fmt.Errorf("empty SQL generated by LLM")
	}

	upper := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("only SELECT queries are allowed, got: %s", upper[:min(20, len(upper))])
	}
	if strings.Contains(s, ";") {
		return fmt.Errorf("multiple statements or semicolons are not allowed")
	}

	for _, kw := range []string{
		"INSERT ", "UPDATE ", "DELETE ", "DROP ", "ALTER ", "TRUNCATE ",
		"CREATE ", "RENAME ", "ATTACH ", "DETACH ", "SYSTEM.",
	} {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("disallowed SQL keyword %q in generated query", strings.TrimSpace(kw))
		}
	}

	table := strings.ToUpper(operationsTable)
	if !strings.Contains(upper, "FROM "+table) && !strings.Contains(upper, "FROM SOLANA."+table) {
		return fmt.Errorf("query must target solana.%s table", operationsTable)
	}
	return nil
}

// capLimit appends a LIMIT when the query has none at the top level.
func capLimit(query string) string {
	if limitRe.MatchString(query) {
		return query
	}
	return fmt.Sprintf("%s LIMIT %d", query, maxRows)
}
