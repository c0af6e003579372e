package main

import (
	"context"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/spectersec/specter/internal/audit"
	"github.com/spectersec/specter/internal/config"
	"github.com/spectersec/specter/internal/dispatch"
	"github.com/spectersec/specter/internal/llm"
	"github.com/spectersec/specter/internal/orchestrator"
	"github.com/spectersec/specter/internal/provider"
	"github.com/spectersec/specter/internal/session"
)

// engine bundles everything a command needs to run analysis turns.
type engine struct {
	cfg          *config.Config
	client       *llm.Client
	registry     *provider.Registry
	auditStore   *audit.Store
	orchestrator *orchestrator.Orchestrator
	session      *session.Session
	events       chan orchestrator.Event
	stopWatch    context.CancelFunc
}

// buildEngine wires the client, provider registry, audit store, and
// orchestrator from the loaded configuration.
func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}

	registry, err := provider.LoadFile(cfg.Providers.File)
	if err != nil {
		return nil, fmt.Errorf("load provider inventory: %w", err)
	}

	// Watch blocks until its context ends, so it runs in the background
	// for the lifetime of the engine.
	var stopWatch context.CancelFunc
	if cfg.Providers.Watch {
		watchCtx, cancel := context.WithCancel(context.Background())
		stopWatch = cancel
		go func() {
			if err := registry.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
				log.Printf("[engine] provider watch stopped: %v", err)
			}
		}()
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		path := cfg.Audit.Path
		if path == "" {
			path = audit.DefaultPath()
		}
		auditStore, err = audit.Open(path)
		if err != nil {
			if stopWatch != nil {
				stopWatch()
			}
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	backend := llm.NewAnthropicGenerator(llm.GeneratorConfig{
		Client:        client,
		MaxIterations: cfg.Orchestrator.MaxIterations,
	})

	events := make(chan orchestrator.Event, 64)

	ocfg := orchestrator.Config{
		Backend:     backend,
		Registry:    registry,
		Dispatch:    dispatch.Config{TaskTimeout: cfg.Orchestrator.TaskTimeout},
		MaxParallel: cfg.Orchestrator.MaxParallel,
		Events:      events,
	}
	if auditStore != nil {
		ocfg.Audit = auditStore
	}

	return &engine{
		cfg:          cfg,
		client:       client,
		registry:     registry,
		auditStore:   auditStore,
		orchestrator: orchestrator.New(ocfg),
		session:      session.New(cfg.Orchestrator.HistoryWindow),
		events:       events,
		stopWatch:    stopWatch,
	}, nil
}

// close releases the engine's resources.
func (e *engine) close() {
	if e.stopWatch != nil {
		e.stopWatch()
	}
	if e.auditStore != nil {
		e.auditStore.Close()
	}
}
