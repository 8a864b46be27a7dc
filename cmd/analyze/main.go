// Command analyze drives a single analyze() call end to end: it launches a
// browser pool, acquires a session, runs the Analyzer Loop against a URL
// and a natural-language query, and prints the discovered Source's request
// template and pagination strategy as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sourcelens-io/sourcelens/internal/analyzer"
	"github.com/sourcelens-io/sourcelens/internal/browser"
	"github.com/sourcelens-io/sourcelens/internal/capture"
	"github.com/sourcelens-io/sourcelens/internal/config"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
	"github.com/sourcelens-io/sourcelens/internal/logging"
	"github.com/sourcelens-io/sourcelens/internal/protection"
	"github.com/sourcelens-io/sourcelens/internal/strategy"
)

func main() {
	url := flag.String("url", "", "absolute URL to analyze")
	query := flag.String("query", "", "natural-language description of the data to extract")
	schemaFlag := flag.String("schema", "", "comma-separated name:type pairs, e.g. name:string,price:number")
	maxSteps := flag.Int("max-steps", 0, "override the configured max_steps (0 = use config default)")
	flag.Parse()

	logger := logging.New()
	logging.SetDefault()

	if *url == "" || *query == "" || *schemaFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -url=... -query=... -schema=name:type,...")
		os.Exit(2)
	}

	cfg := config.Load()
	steps := cfg.MaxSteps
	if *maxSteps > 0 {
		steps = *maxSteps
	}

	schema, err := parseSchema(*schemaFlag)
	if err != nil {
		logger.Error("invalid schema", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool := browser.NewPool(cfg, logger)
	defer pool.Close()
	if err := pool.Warmup(ctx, 1); err != nil {
		logger.Error("browser pool warmup failed", "error", err)
		os.Exit(1)
	}

	managed, err := pool.Acquire(ctx)
	if err != nil {
		logger.Error("acquire browser", "error", err)
		os.Exit(1)
	}
	defer pool.Release(managed)

	store := capture.NewStore()
	store.Protected = protection.IsChallenge

	session, err := browser.NewSession(managed, store, logger)
	if err != nil {
		logger.Error("create session", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	if err := session.Navigate(*url); err != nil {
		logger.Error("navigate", "error", err)
		os.Exit(1)
	}

	llm, err := llmclient.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMCallTimeout, cfg.LLMMaxRetries, logger)
	if err != nil {
		logger.Error("create LLM client", "error", err)
		os.Exit(1)
	}

	builder := strategy.NewBuilder(llm, logger)
	loop := analyzer.New(session, llm, store, builder, logger)

	src, ok, err := loop.Analyze(ctx, *query, schema, steps, cfg.AnalyzeDeadline)
	if err != nil {
		logger.Error("analyze failed", "error", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("no source found")
		return
	}

	encoded, err := json.MarshalIndent(struct {
		Request      interface{} `json:"request"`
		Strategy     interface{} `json:"strategy"`
		DefaultLimit int         `json:"default_limit"`
		Query        string      `json:"query"`
	}{
		Request:      src.Request,
		Strategy:     src.Strategy,
		DefaultLimit: src.DefaultLimit,
		Query:        src.Query,
	}, "", "  ")
	if err != nil {
		logger.Error("marshal result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}

// parseSchema turns "name:string,price:number" into a strategy.OutputSchema.
func parseSchema(raw string) (strategy.OutputSchema, error) {
	schema := make(strategy.OutputSchema)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid schema pair %q, want name:type", pair)
		}
		schema[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("schema must declare at least one property")
	}
	return schema, nil
}
