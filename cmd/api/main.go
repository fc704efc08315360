// Package main implements the Fixwell chat API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FixwellAI/fixwell-mvp/engine/catalog"
	"github.com/FixwellAI/fixwell-mvp/engine/chat"
	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/engine/intent"
	"github.com/FixwellAI/fixwell-mvp/pkg/llm"
	"github.com/FixwellAI/fixwell-mvp/pkg/metrics"
	"github.com/FixwellAI/fixwell-mvp/pkg/mid"
	"github.com/FixwellAI/fixwell-mvp/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	OpenAIKey  string
	OpenAIBase string
	ChatModel  string
	CORSOrigin string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBase: os.Getenv("OPENAI_BASE_URL"),
		ChatModel:  envOr("CHAT_MODEL", "gpt-4o-mini"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	store := catalog.New(driver)

	// --- Chat model client ---
	// Without an API key the deterministic extraction path carries every
	// turn and general questions get the canned answer.
	var chatClient llm.ChatClient
	if cfg.OpenAIKey != "" {
		chatClient = llm.New(llm.Config{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBase,
			Model:   cfg.ChatModel,
		})
	} else {
		logger.Warn("OPENAI_API_KEY not set, running deterministic-only")
	}

	// --- Build chat service ---
	reg := metrics.New()
	classifier := intent.New(chatClient, intent.Options{}, logger)
	svc := chat.New(store, classifier, chatClient, chat.Options{Metrics: reg}, logger)

	go refreshCatalogGauges(ctx, store, reg, logger)

	// --- Build HTTP server ---
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: 20, Burst: 40})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/chat", handleChat(svc, limiter, logger))
	mux.HandleFunc("GET /api/stats", handleStats(store, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.OTel("fixwell-api"),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// refreshCatalogGauges keeps catalog size gauges current so /metrics
// reflects the store without a store query per scrape.
func refreshCatalogGauges(ctx context.Context, store *catalog.Store, reg *metrics.Registry, logger *slog.Logger) {
	const help = "Catalog size by group"
	refresh := func() {
		qctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		parts, err := store.PartCounts(qctx)
		if err != nil {
			logger.Warn("catalog gauge refresh failed", "err", err)
			return
		}
		for appliance, n := range parts {
			reg.Gauge(metrics.WithLabels("fixwell_catalog_parts", "appliance", appliance), help).Set(n)
		}
		edges, err := store.EdgeCounts(qctx)
		if err != nil {
			logger.Warn("catalog gauge refresh failed", "err", err)
			return
		}
		for relation, n := range edges {
			reg.Gauge(metrics.WithLabels("fixwell_catalog_edges", "relation", relation), help).Set(n)
		}
	}

	refresh()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Query   string                    `json:"query"`
	History []domain.ConversationTurn `json:"conversation_history"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

func handleChat(svc *chat.Service, limiter *resilience.Limiter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
			return
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if err := domain.ValidateUtterance(req.Query); err != nil {
			logger.Warn("rejected chat query", "err", err)
			http.Error(w, `{"error":"invalid query"}`, http.StatusBadRequest)
			return
		}
		if err := domain.ValidateTurns(req.History); err != nil {
			http.Error(w, `{"error":"invalid conversation history"}`, http.StatusBadRequest)
			return
		}

		answer := svc.Respond(r.Context(), req.Query, req.History)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{Response: answer})
	}
}

// StatsResponse is the JSON response for GET /api/stats.
type StatsResponse struct {
	Parts  map[string]int64     `json:"parts"`
	Edges  map[string]int64     `json:"edges"`
	Brands []catalog.BrandStats `json:"brands"`
}

func handleStats(store *catalog.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		parts, err := store.PartCounts(ctx)
		if err != nil {
			logger.Error("stats query failed", "err", err)
			http.Error(w, `{"error":"catalog unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		edges, err := store.EdgeCounts(ctx)
		if err != nil {
			logger.Error("stats query failed", "err", err)
			http.Error(w, `{"error":"catalog unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		brands, err := store.BrandCounts(ctx, 10)
		if err != nil {
			logger.Error("stats query failed", "err", err)
			http.Error(w, `{"error":"catalog unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatsResponse{Parts: parts, Edges: edges, Brands: brands})
	}
}
