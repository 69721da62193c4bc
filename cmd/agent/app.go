package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/openapi-agent/internal/agent"
	"github.com/dileep-u-k/openapi-agent/internal/apicall"
	"github.com/dileep-u-k/openapi-agent/internal/history"
	"github.com/dileep-u-k/openapi-agent/internal/llm"
	"github.com/dileep-u-k/openapi-agent/internal/logging"
	"github.com/dileep-u-k/openapi-agent/internal/stats"
	"github.com/dileep-u-k/openapi-agent/internal/tools"
)

// ClientFactory returns the model client serving a model id.
type ClientFactory func(ctx context.Context, model string) (llm.Client, error)

// App wires the shared services every command works with.
type App struct {
	cfg       *AppConfig
	headers   *apicall.HeaderStore
	manager   *tools.ToolManager
	toolset   []tools.Tool
	recorder  *logging.Recorder
	profiler  *stats.Profiler
	newClient ClientFactory

	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// NewApp initializes logging, the header store, the tool set and the optional
// Redis profiler from cfg.
func NewApp(ctx context.Context, cfg *AppConfig) (*App, error) {
	app := &App{cfg: cfg, headers: apicall.NewHeaderStore()}

	app.recorder = logging.Nop()
	if !cfg.DisableLogging {
		rec, err := logging.New(logging.Options{Dir: cfg.LogDir, File: cfg.LogFile, Level: slog.LevelDebug})
		if err != nil {
			log.Printf("⚠️ WARNING: Error setting up logging: %v. Logging to file will be disabled.", err)
		} else {
			app.recorder = rec
			app.addCloser(rec.Close)
			log.Printf("📝 Logging to %s", rec.Path())
		}
	}

	cfg.InstallHeaders(app.headers)

	toolset, err := loadToolset(cfg.ToolsFile)
	if err != nil {
		return nil, err
	}
	app.toolset = toolset
	app.manager = newToolManager(app.headers, app.recorder)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("⚠️ WARNING: Could not connect to Redis at %s, stats disabled: %v", cfg.RedisAddr, err)
			_ = rdb.Close()
		} else {
			app.profiler = stats.NewProfiler(rdb)
			app.addCloser(rdb.Close)
			log.Println("✅ Usage stats enabled.")
		}
	}

	app.newClient = newClientFactory(cfg, app.addCloser)
	log.Printf("✅ Agent initialized with %d tools.", len(app.toolset))
	return app, nil
}

// addCloser registers a resource released by Close. Once the App is closed,
// fn runs immediately instead.
func (a *App) addCloser(fn func() error) {
	a.mu.Lock()
	if !a.closed {
		a.closers = append(a.closers, fn)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	if err := fn(); err != nil {
		log.Printf("Warning: close failed: %v", err)
	}
}

// Close releases model clients, Redis and the log file. It is safe to call
// while requests are still creating clients, and more than once.
func (a *App) Close() {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.closed = true
	a.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}

// Orchestrator builds a conversation driver for model. Every orchestrator
// owns its execution history, so concurrent requests do not share one.
func (a *App) Orchestrator(ctx context.Context, model string, maxTokens int) (*agent.Orchestrator, error) {
	if model == "" {
		model = a.cfg.Model
	}
	if maxTokens <= 0 {
		maxTokens = a.cfg.MaxTokens
	}
	client, err := a.newClient(ctx, model)
	if err != nil {
		return nil, err
	}
	return agent.New(client, a.toolset, a.manager, agent.Config{
		Model:         model,
		MaxTokens:     maxTokens,
		MaxIterations: a.cfg.MaxIterations,
		System:        a.cfg.System,
	},
		agent.WithHistory(history.New()),
		agent.WithRecorder(a.recorder),
		agent.WithProfiler(a.profiler),
	), nil
}

func newToolManager(headers *apicall.HeaderStore, observer apicall.Observer) *tools.ToolManager {
	executor := apicall.NewExecutor(headers, &http.Client{}, observer)
	manager := tools.NewToolManager()
	manager.Register(tools.ReservedPrefix, tools.NewAPICallTool(executor))
	return manager
}

// loadToolset reads the tools file, or falls back to the generic api_call tool.
func loadToolset(path string) ([]tools.Tool, error) {
	if path == "" {
		log.Println("No tools file configured, using the generic api_call tool.")
		return []tools.Tool{tools.NewAPICallTool(nil).Definition()}, nil
	}
	toolset, err := tools.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tools: %w", err)
	}
	log.Printf("✅ Loaded %d tools from %s", len(toolset), path)
	return toolset, nil
}

// newClientFactory creates model clients lazily and reuses them per provider.
func newClientFactory(cfg *AppConfig, onCreate func(func() error)) ClientFactory {
	var (
		mu        sync.Mutex
		anthropic *llm.AnthropicClient
		gemini    *llm.GeminiClient
	)
	return func(ctx context.Context, model string) (llm.Client, error) {
		mu.Lock()
		defer mu.Unlock()

		if UsesGemini(model) {
			if gemini == nil {
				c, err := llm.NewGeminiClient(context.WithoutCancel(ctx), cfg.GeminiAPIKey)
				if err != nil {
					return nil, fmt.Errorf("failed to create client for %s: %w", model, err)
				}
				gemini = c
				onCreate(c.Close)
			}
			return gemini, nil
		}
		if anthropic == nil {
			c, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, "")
			if err != nil {
				return nil, fmt.Errorf("failed to create client for %s: %w", model, err)
			}
			anthropic = c
		}
		return anthropic, nil
	}
}
