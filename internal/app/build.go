// Package app wires configuration into a runnable service graph.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tsengs/familyagent/internal/agent"
	"github.com/tsengs/familyagent/internal/browser"
	"github.com/tsengs/familyagent/internal/config"
	"github.com/tsengs/familyagent/internal/dedupe"
	"github.com/tsengs/familyagent/internal/dispatch"
	"github.com/tsengs/familyagent/internal/httpapi"
	"github.com/tsengs/familyagent/internal/linebot"
	"github.com/tsengs/familyagent/internal/llm"
	"github.com/tsengs/familyagent/internal/memory"
	"github.com/tsengs/familyagent/internal/observability"
	"github.com/tsengs/familyagent/internal/tools"
)

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Coordinator *dispatch.Coordinator
	Metrics     *observability.Metrics

	// Cleanup should be called on shutdown to release external resources
	// (DB pool, browser session).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	adapter, err := llm.NewAdapter(llm.Config{
		Mode:    cfg.LLMAdapterMode,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		APIKey:  cfg.LLMAPIKey,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("llm adapter init failed: %w", err)
	}

	// A browser that cannot start degrades the catalog instead of failing
	// the whole service; reservations are the only capability lost.
	var driver *browser.Driver
	var browserDriver tools.BrowserDriver
	if cfg.BrowserEnabled {
		driver = browser.NewDriver(browser.Config{
			Headless:   cfg.BrowserHeadless,
			NavTimeout: cfg.BrowserNavTimeout,
		})
		if err := driver.Start(ctx); err != nil {
			log.Printf("browser unavailable, running without reservations: %v", err)
			driver = nil
		} else {
			browserDriver = driver
		}
	}

	root, err := agent.NewCatalog(agent.CatalogDeps{
		Store:         store,
		RecordLimit:   cfg.ContextRecordLimit,
		SummarizeKey:  cfg.FirecrawlAPIKey,
		PlacesKey:     cfg.PlacesAPIKey,
		BrowserDriver: browserDriver,
	})
	if err != nil {
		_ = store.Close()
		if driver != nil {
			_ = driver.Close()
		}
		return nil, fmt.Errorf("handler catalog init failed: %w", err)
	}

	recorder := tools.NewRecorder(metrics, cfg.ToolTimeout)
	runner := agent.NewRunner(adapter, recorder, cfg.DispatchMaxSteps)
	assembler := memory.NewAssembler(store, cfg.ContextRecordLimit, cfg.ContextEntryMaxChars, cfg.ContextMaxChars)
	coordinator := dispatch.NewCoordinator(assembler, runner, root, store, metrics)

	client := linebot.NewClient(cfg.LineAccessToken)
	policy := linebot.NewPushPolicy(cfg.AllowedGroupIDs)
	gate := dedupe.NewGate(cfg.DedupeCapacity)

	api := httpapi.New(cfg, coordinator, client, gate, policy, metrics)

	cleanup := func() error {
		var errs []string
		if driver != nil {
			if err := driver.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Coordinator: coordinator,
		Metrics:     metrics,
		Cleanup:     cleanup,
	}, nil
}
