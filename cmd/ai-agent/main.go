package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/ai"
	"github.com/aman-zulfiqar/spl-token-manager/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ai-agent answers questions about the wallet's token operations from the
// ClickHouse operation log, once with -q or interactively.
func main() {
	_, filename, _, _ := runtime.Caller(0)
	_ = godotenv.Load(filepath.Join(filepath.Dir(filename), "../..", ".env"))

	queryFlag := flag.String("q", "", "ask one question and exit")
	modelFlag := flag.String("model", "openai/gpt-4.1-mini", "OpenRouter model name")
	jsonFlag := flag.Bool("json", false, "print results as JSON")
	timeout := flag.Duration("timeout", 45*time.Second, "per-question timeout")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Load()
	if !cfg.ClickHouseEnabled() {
		logger.Fatal("CLICKHOUSE_ADDR and CLICKHOUSE_DATABASE are required, the agent reads the token_operations log")
	}
	if cfg.OpenRouterAPIKey == "" {
		logger.Fatal("OPENROUTER_API_KEY is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	agent, err := ai.NewAgent(ctx, ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              *modelFlag,
		Logger:             logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create AI agent")
	}
	defer agent.Close()

	ask := func(q string) error {
		qctx, qcancel := context.WithTimeout(ctx, *timeout)
		defer qcancel()

		start := time.Now()
		res, err := agent.Ask(qctx, q)
		if err != nil {
			return err
		}
		if *jsonFlag {
			return json.NewEncoder(os.Stdout).Encode(res)
		}
		fmt.Printf("\nSQL (%d rows, %s):\n%s\n\n%s\n\n", res.Rows, time.Since(start).Round(time.Millisecond), res.SQL, res.Answer)
		return nil
	}

	if *queryFlag != "" {
		if err := ask(*queryFlag); err != nil {
			logger.WithError(err).Fatal("query failed")
		}
		return
	}

	fmt.Println("Token operations assistant. Ask about mints, transfers and failures; empty line exits.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() || ctx.Err() != nil {
			return
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			return
		}
		if err := ask(q); err != nil {
			fmt.Println("error:", err)
		}
	}
}
