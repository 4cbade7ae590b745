package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jayc-10/corpusearch/internal/indexer/tokenizer"
	"github.com/jayc-10/corpusearch/internal/searcher/engine"
	"github.com/jayc-10/corpusearch/pkg/config"
	"github.com/jayc-10/corpusearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dataDir := flag.String("data-dir", "", "index directory (overrides config)")
	query := flag.String("query", "", "run a single query and exit")
	limit := flag.Int("limit", 0, "maximum results per query (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Index.DataDir = *dataDir
	}
	// Keep the prompt clean; only warnings and errors get through.
	logger.Setup("warn", "text")

	eng, err := engine.New(cfg.Index, tokenizer.New(cfg.Index.Stemming), cfg.Search.ImportantBoost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open index: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	topK := cfg.Search.TopK
	if *limit > 0 {
		topK = *limit
	}

	if *query != "" {
		runQuery(eng, *query, topK)
		return
	}

	docs, terms := eng.Stats()
	fmt.Printf("corpusearch: %d documents, %d terms. Enter queries (AND semantics); empty line to exit.\n", docs, terms)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("query> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "exit" || line == "quit" {
			break
		}
		runQuery(eng, line, topK)
	}
}

func runQuery(eng *engine.Engine, query string, limit int) {
	res, err := eng.Search(context.Background(), query, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		return
	}
	switch res.NoMatch {
	case engine.NoMatchEmptyQuery:
		fmt.Println("No valid terms in query.")
	case engine.NoMatchUnknownTerms:
		fmt.Println("No documents matched the query.")
	case engine.NoMatchIntersection:
		fmt.Println("No documents matched all query terms.")
	default:
		fmt.Printf("%d matching documents, showing top %d:\n", res.TotalHits, len(res.Results))
		for i, r := range res.Results {
			fmt.Printf("%3d. score=%.4f  %s\n", i+1, r.Score, r.URL)
		}
	}
}
