// cmd/tools/search-cli/main.go
//
// One-shot search against a live database, bypassing Camunda. Useful for
// checking what a query plan actually returns while tuning the bias
// registry or the wave caps.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"search-workers/internal/common/config"
	"search-workers/internal/common/database"
	"search-workers/internal/common/logger"
	"search-workers/internal/models"
	"search-workers/internal/search"
	"search-workers/internal/search/bias"
)

func main() {
	tenantID := flag.String("tenant", "", "Tenant UUID (required)")
	queryText := flag.String("query", "", "Query text (required)")
	termsJSON := flag.String("terms", "", `Extracted terms as JSON, e.g. '[{"type":"FAULT_CODE","value":"E047","confidence":0.9}]'`)
	hint := flag.String("hint", "", "Operator wave hint: EXACT, SUBSTRING or SIMILARITY")
	configPath := flag.String("config", "", "Config file path (default: standard lookup)")
	noCache := flag.Bool("no-cache", false, "Skip the response cache even when configured")
	verbose := flag.Bool("v", false, "Log pipeline internals to stderr")
	flag.Parse()

	if *tenantID == "" || *queryText == "" {
		flag.Usage()
		os.Exit(1)
	}

	var terms []models.Term
	if *termsJSON != "" {
		if err := json.Unmarshal([]byte(*termsJSON), &terms); err != nil {
			fatalf("parse -terms: %v", err)
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	log := logger.NewStructured(level, "console")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fatalf("connect postgres: %v", err)
	}
	defer pg.Close()

	ctx := context.Background()
	if err := pg.Ping(ctx); err != nil {
		fatalf("ping postgres: %v", err)
	}

	var cache *database.RedisClient
	if cfg.Search.CacheEnabled && !*noCache {
		cache, err = database.NewRedis(cfg.Database.Redis)
		if err == nil {
			err = cache.Ping(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis unavailable, searching without cache: %v\n", err)
			cache = nil
		}
	}
	if cache != nil {
		defer cache.Close()
	} else {
		cfg.Search.CacheEnabled = false
	}

	biasRegistry, err := bias.Load(cfg.Search.RegistryPath)
	if err != nil {
		fatalf("load bias registry: %v", err)
	}

	searcher := search.New(cfg, pg.DB, redisClient(cache), biasRegistry, log)

	resp, err := searcher.Search(ctx, &models.SearchRequest{
		TenantID:     *tenantID,
		QueryText:    *queryText,
		Terms:        terms,
		OperatorHint: models.Wave(*hint),
	})
	if err != nil {
		fatalf("search: %v", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fatalf("encode response: %v", err)
	}
	fmt.Println(string(out))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func redisClient(c *database.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.Client
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
