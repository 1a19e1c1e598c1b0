package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/contractreview/internal/config"
	"github.com/dgallion1/contractreview/internal/history"
	"github.com/dgallion1/contractreview/internal/llm"
	"github.com/dgallion1/contractreview/internal/logger"
	"github.com/dgallion1/contractreview/internal/render"
	"github.com/dgallion1/contractreview/internal/review"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	client   *llm.Client
	reviewer *review.Reviewer
	renderer *render.Renderer
	history  *history.Manager
}

func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if configPath != "" {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = c
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp loads the configuration and wires the review components. The model
// client is only created when withModel is set.
func newApp(logOut io.Writer, withModel bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, logOut)
	a := &app{
		cfg:      cfg,
		log:      log,
		renderer: render.NewRenderer(cfg.OutputDir, log),
		history:  history.Open(cfg.HistoryFile(), cfg.HistoryMaxRecords, log),
	}
	if !withModel {
		return a, nil
	}

	client, err := llm.New(cfg.Backend(), cfg.LLMOptions(), log)
	if err != nil {
		return nil, fmt.Errorf("init model client: %w", err)
	}
	a.client = client
	a.reviewer = review.NewReviewer(client, review.Config{
		ChecklistTemperature: cfg.ChecklistTemperature,
		ReviewTemperature:    cfg.ReviewTemperature,
		MaxTokens:            cfg.LLMMaxTokens,
		MaxContractChars:     cfg.MaxContractChars,
	}, log)
	return a, nil
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
}
