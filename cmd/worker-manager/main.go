// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"search-workers/internal/common/camunda"
	"search-workers/internal/common/config"
	"search-workers/internal/common/database"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/observability"
	"search-workers/internal/search"
	"search-workers/internal/search/bias"
	"search-workers/pkg/registry"

	cql "search-workers/internal/workers/search/classify-query-lane"
	ts "search-workers/internal/workers/search/tiered-search"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Load the bias registry; a rejected artifact stops the process ---
	biasRegistry, err := bias.Load(cfg.Search.RegistryPath)
	if err != nil {
		zapLog.Fatal("bias registry rejected",
			zap.String("path", cfg.Search.RegistryPath),
			zap.Error(err),
		)
	}
	zapLog.Info("bias registry loaded",
		zap.String("version", biasRegistry.Version()),
		zap.Int("tables", biasRegistry.TableCount()),
	)

	// --- Load the activity registry; workers run unvalidated without it ---
	activities, err := registry.LoadRegistry(cfg.Registry.ActivityPath)
	if err != nil {
		zapLog.Warn("activity registry unavailable, input validation disabled",
			zap.String("path", cfg.Registry.ActivityPath),
			zap.Error(err),
		)
		activities = nil
	}

	searcher := search.New(cfg, pg.DB, rdb.Client, biasRegistry, log)

	// --- Register workers ---
	var workers []*camunda.Worker

	if wcfg := cfg.Workers[ts.TaskType]; wcfg.Enabled {
		handler := ts.NewHandler(
			&ts.Config{
				Timeout: config.GetDuration(wcfg.Timeout),
			},
			searcher,
			findActivity(activities, ts.TaskType, zapLog),
			log,
		)
		workers = append(workers, camunda.NewWorker(camundaClient.GetClient(), ts.TaskType, wcfg, handler.Handle, zapLog))
	}

	if wcfg := cfg.Workers[cql.TaskType]; wcfg.Enabled {
		handler := cql.NewHandler(
			&cql.Config{
				Timeout: config.GetDuration(wcfg.Timeout),
			},
			findActivity(activities, cql.TaskType, zapLog),
			log,
		)
		workers = append(workers, camunda.NewWorker(camundaClient.GetClient(), cql.TaskType, wcfg, handler.Handle, zapLog))
	}

	if len(workers) == 0 {
		zapLog.Warn("no workers enabled; serving health and metrics only")
	} else {
		zapLog.Info("All workers registered successfully", zap.Int("count", len(workers)))
	}

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			checks := map[string]string{
				"zeebe":    "ok",
				"postgres": "ok",
				"redis":    "ok",
			}
			ready := true
			if err := camundaClient.HealthCheck(checkCtx); err != nil {
				checks["zeebe"] = err.Error()
				ready = false
			}
			if err := pg.Ping(checkCtx); err != nil {
				checks["postgres"] = err.Error()
				ready = false
			}
			if err := rdb.Ping(checkCtx); err != nil {
				checks["redis"] = err.Error()
				ready = false
			}

			w.Header().Set("Content-Type", "application/json")
			if ready {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ready":  ready,
				"checks": checks,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Stop()
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// findActivity resolves the registry entry for a task type. A missing entry
// is tolerated: the worker then skips input schema validation.
func findActivity(reg *registry.ActivityRegistry, taskType string, log *zap.Logger) *registry.Activity {
	if reg == nil {
		return nil
	}
	activity := reg.FindByTaskType(taskType)
	if activity == nil {
		log.Warn("task type missing from activity registry; input validation disabled",
			zap.String("taskType", taskType),
		)
	}
	return activity
}
