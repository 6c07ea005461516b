package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/msgpilot/msgpilot/bridge"
	"github.com/msgpilot/msgpilot/config"
	"github.com/msgpilot/msgpilot/delivery"
	"github.com/msgpilot/msgpilot/engine"
	"github.com/msgpilot/msgpilot/history"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/provider"
	"github.com/msgpilot/msgpilot/settings"
	"github.com/msgpilot/msgpilot/tools"
)

// app bundles the wired components a command needs.
type app struct {
	cfg           *config.Config
	provider      provider.Provider
	bridge        *bridge.Client
	conversations *history.Store
	deliveries    *delivery.Store
	settings      *settings.Manager
	registry      *tools.Registry
	engine        *engine.Engine
}

func (a *app) close() {
	if a.conversations != nil {
		if err := a.conversations.Close(); err != nil {
			logger.Warn("conversation store close failed", "error", err)
		}
	}
	if a.deliveries != nil {
		if err := a.deliveries.Close(); err != nil {
			logger.Warn("delivery store close failed", "error", err)
		}
	}
}

// buildApp loads config, initializes logging, opens the stores, and wires
// the engine with its tools.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Enabled: cfg.LogEnabled(),
		Level:   cfg.Logging.Level,
		Stdout:  cfg.Logging.Stdout,
		File:    cfg.Logging.File,
	}, configDir); err != nil {
		logger.Warn("logger init incomplete", "error", err)
	}

	p, err := provider.New(provider.Settings{
		Name:        cfg.Provider.Name,
		APIKey:      cfg.Provider.APIKey,
		APIBase:     cfg.Provider.APIBase,
		Model:       cfg.Provider.Model,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
	})
	if err != nil {
		return nil, err
	}

	dataDir, err := cfg.DataDirPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	settingsMgr := settings.NewManager(configDir)

	deliveries, err := delivery.Open(filepath.Join(dataDir, "deliveries"),
		delivery.WithLocation(settingsMgr.Location()))
	if err != nil {
		return nil, err
	}
	conversations, err := history.Open(filepath.Join(dataDir, "conversations"))
	if err != nil {
		_ = deliveries.Close()
		return nil, err
	}

	bridgeClient := bridge.NewClient(cfg.Bridge.URL)

	registry := tools.NewRegistry()
	registry.Register(tools.NewSendMessageTool(bridgeClient, nil))
	registry.Register(tools.NewScheduleMessageTool(deliveries))
	registry.Register(tools.NewListScheduledTool(deliveries))
	registry.Register(tools.NewCancelScheduledTool(deliveries))
	registry.Register(tools.NewScheduleBroadcastTool(deliveries))
	registry.Register(tools.NewBridgeStatusTool(bridgeClient))

	eng := engine.New(p, registry,
		engine.WithMaxRounds(cfg.Engine.MaxRounds),
		engine.WithContextConfig(engine.ContextConfig{
			MaxTurns:          cfg.Engine.MaxTurns,
			FullFidelityTurns: cfg.Engine.FullFidelityTurns,
			ToolResultBudget:  cfg.Engine.ToolResultBudget,
		}),
		engine.WithAssistantName(settingsMgr.Get().AssistantName),
	)

	return &app{
		cfg:           cfg,
		provider:      p,
		bridge:        bridgeClient,
		conversations: conversations,
		deliveries:    deliveries,
		settings:      settingsMgr,
		registry:      registry,
		engine:        eng,
	}, nil
}

// pollInterval resolves the worker tick period from config.
func (a *app) pollInterval() time.Duration {
	return time.Duration(a.cfg.Delivery.PollIntervalSeconds) * time.Second
}
