package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/meridianbio/batchsight-backend/internal/alerts"
	"github.com/meridianbio/batchsight-backend/internal/catalog"
	"github.com/meridianbio/batchsight-backend/internal/ingestion/generator"
	"github.com/meridianbio/batchsight-backend/internal/ingestion/pipeline"
	"github.com/meridianbio/batchsight-backend/internal/insights"
	"github.com/meridianbio/batchsight-backend/internal/labels"
	"github.com/meridianbio/batchsight-backend/internal/ledger"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/poller"
	"github.com/meridianbio/batchsight-backend/internal/services"
)

type App struct {
	Log       *logger.Logger
	Cfg       Config
	Router    *gin.Engine
	Quality   *services.QualityService
	Connector *poller.Connector

	cancel context.CancelFunc
}

func New() (*App, error) {
	cfg := LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	labelEng, err := labels.NewEngine(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load label templates: %w", err)
	}

	store := ledger.NewStore(log)
	store.ScoreFn = labelEng.Score

	pipe := pipeline.New(log, cat, generator.New(), labelEng, store, pipeline.DefaultConfig())
	if _, err := pipe.Refresh(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("initial ingestion: %w", err)
	}

	alertEng := alerts.NewEngine(log, cat, labelEng)
	insEng, err := insights.NewEngine(log, labelEng)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load recipes: %w", err)
	}

	var conn *poller.Connector
	if cfg.ConnectorEnabled {
		connCfg := poller.DefaultConfig()
		connCfg.TickInterval = cfg.ConnectorTick
		connCfg.CompanionWindow = cfg.ConnectorWindow
		connCfg.Timeout = cfg.ConnectorTimeout
		connCfg.Seed = int64(cfg.ConnectorSeed)
		conn = poller.New(log, connCfg)
	}

	quality := services.NewQualityService(log, cat, labelEng, store, pipe, alertEng, insEng, conn)

	handlerset := wireHandlers(log, quality)
	router := wireRouter(log, handlerset)

	return &App{
		Log:       log,
		Cfg:       cfg,
		Router:    router,
		Quality:   quality,
		Connector: conn,
	}, nil
}

// Start launches background work, currently just the instrument connector.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Connector != nil {
		a.Connector.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Connector != nil {
		a.Connector.Stop()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
