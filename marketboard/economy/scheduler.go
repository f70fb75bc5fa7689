// Package economy runs the market pipeline: refresh statistics, propagate
// costs, then rank and publish.
package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"github.com/xivmarket/market-calculator/marketboard/economy/ingest"
	"github.com/xivmarket/market-calculator/marketboard/economy/pricing"
	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
	"github.com/xivmarket/market-calculator/marketboard/metrics"
	"github.com/xivmarket/market-calculator/marketboard/services/notify"
	"github.com/xivmarket/market-calculator/marketboard/utils"
)

var ErrRunInProgress = errors.New("pipeline run already in progress")

// Publisher sends rendered pages somewhere visible.
type Publisher interface {
	Publish(ctx context.Context, table string, pages []notify.Page, render notify.Render) ([]snowflake.ID, error)
}

// Archiver stores a copy of every published report.
type Archiver interface {
	ReportKey(location, table string, t time.Time) string
	ArchiveReport(ctx context.Context, key, body string) error
}

// Table is one published ranking.
type Table struct {
	Name       string
	Metric     string
	NoCraft    bool
	Gathering  bool
	MessageIDs []snowflake.ID
}

// Tables returns the default table plus the optional no-craft and gathering tables.
func Tables(messageIDs, noCraftIDs, gatheringIDs []snowflake.ID, noCraft, gathering bool) []Table {
	tables := []Table{{Name: "default", Metric: ranking.MetricCraftProfitPerDay, MessageIDs: messageIDs}}
	if noCraft {
		tables = append(tables, Table{Name: "no_craft", Metric: ranking.MetricRawProfitPerDay, NoCraft: true, MessageIDs: noCraftIDs})
	}
	if gathering {
		tables = append(tables, Table{Name: "gathering", Metric: ranking.MetricRawProfitPerDay, Gathering: true, MessageIDs: gatheringIDs})
	}
	return tables
}

// PipelineConfig selects the scope, refresh size and published tables of a Pipeline.
type PipelineConfig struct {
	Scope models.Scope
	// UpdateQuantity bounds items refreshed per run; 0 refreshes everything
	// from the checkpoint to the end of the catalog.
	UpdateQuantity int
	Threshold      float64
	Tables         []Table
}

// RunReport summarises one pipeline run.
type RunReport struct {
	RunID       string
	Started     time.Time
	Duration    time.Duration
	Refresh     *ingest.RunStats
	Propagation *pricing.PropagationStats
	// Reports holds the rendered pages of each table.
	Reports map[string][]string
	// Created holds ids of messages posted because no id was configured.
	Created map[string][]snowflake.ID
}

// Pipeline runs refresh, propagation and publishing as one serialised run.
type Pipeline struct {
	cfg        PipelineConfig
	items      repositories.ItemRepository
	states     repositories.StateRepository
	controller *ingest.Controller
	propagator *pricing.Propagator
	engine     *ranking.Engine
	publisher  Publisher
	archiver   Archiver
	metrics    *metrics.Registry
	logger     *slog.Logger
	now        func() time.Time
	running    atomic.Bool
}

// PipelineDeps holds the services a Pipeline drives.
type PipelineDeps struct {
	Items      repositories.ItemRepository
	States     repositories.StateRepository
	Controller *ingest.Controller
	Propagator *pricing.Propagator
	Engine     *ranking.Engine
	// Publisher and Archiver are optional.
	Publisher Publisher
	Archiver  Archiver
	Metrics   *metrics.Registry
	Logger    *slog.Logger
}

func NewPipeline(cfg PipelineConfig, deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		items:      deps.Items,
		states:     deps.States,
		controller: deps.Controller,
		propagator: deps.Propagator,
		engine:     deps.Engine,
		publisher:  deps.Publisher,
		archiver:   deps.Archiver,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Start runs the pipeline immediately and then every interval until ctx is
// cancelled. Failed runs are logged and never stop the loop.
func (p *Pipeline) Start(ctx context.Context, interval time.Duration) {
	p.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runLogged(ctx)
		}
	}
}

func (p *Pipeline) runLogged(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("Pipeline run failed",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
	}
}

// RunOnce refreshes statistics from the scope's checkpoint, propagates costs
// and publishes every configured table. Publishing and archiving failures are
// reported but do not undo earlier stages.
func (p *Pipeline) RunOnce(ctx context.Context) (*RunReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	report := &RunReport{
		RunID:   uuid.NewString(),
		Started: p.now(),
		Reports: make(map[string][]string),
		Created: make(map[string][]snowflake.ID),
	}
	logger := p.logger.With(slog.String("run_id", report.RunID))
	scope := p.cfg.Scope

	logger.Info("Pipeline run started",
		slog.String("type", "sys"),
		slog.String("scope", scope.String()),
	)

	start, err := p.resumePoint(ctx, scope)
	if err != nil {
		return report, err
	}

	stageStart := time.Now()
	report.Refresh, err = p.controller.Refresh(ctx, scope, start, p.cfg.UpdateQuantity)
	p.metrics.ObserveStage("refresh", time.Since(stageStart), err)
	if err != nil {
		return report, fmt.Errorf("refresh: %w", err)
	}
	if p.cfg.UpdateQuantity == 0 {
		if err := p.states.Reset(ctx, scope); err != nil {
			return report, fmt.Errorf("reset checkpoint: %w", err)
		}
	}

	report.Propagation, err = p.propagator.PropagateCosts(ctx, scope)
	if err != nil {
		return report, fmt.Errorf("propagate: %w", err)
	}

	stageStart = time.Now()
	publishErr := p.publishAll(ctx, report, logger)
	p.metrics.ObserveStage("publish", time.Since(stageStart), publishErr)

	report.Duration = p.now().Sub(report.Started)
	if count, err := p.items.Count(ctx); err == nil {
		p.metrics.MarkRun(p.now(), count)
	}

	logger.Info("Pipeline run finished",
		slog.String("type", "sys"),
		slog.String("scope", scope.String()),
		slog.Int("refreshed", report.Refresh.Updated),
		slog.Int("items_changed", report.Propagation.ItemsChanged),
		slog.Int("tables", len(p.cfg.Tables)),
		slog.Duration("took", report.Duration),
	)
	return report, publishErr
}

func (p *Pipeline) resumePoint(ctx context.Context, scope models.Scope) (int64, error) {
	state, err := p.states.Get(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	maxID, err := p.items.MaxID(ctx)
	if err != nil {
		return 0, fmt.Errorf("load catalog size: %w", err)
	}
	return state.ResumeFrom(maxID), nil
}

func (p *Pipeline) publishAll(ctx context.Context, report *RunReport, logger *slog.Logger) error {
	var errs []error
	for _, table := range p.cfg.Tables {
		if err := p.publishTable(ctx, table, report, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) publishTable(ctx context.Context, table Table, report *RunReport, logger *slog.Logger) error {
	pages := notify.Pages(table.MessageIDs)
	rendered := make(map[int]string, len(pages))

	for _, page := range pages {
		content, err := p.RenderPage(ctx, table, page.Offset, page.Limit, report.Started)
		if err != nil {
			return fmt.Errorf("rank %s: %w", table.Name, err)
		}
		rendered[page.Offset] = content
		report.Reports[table.Name] = append(report.Reports[table.Name], content)
	}

	var errs []error
	if p.publisher != nil {
		created, err := p.publisher.Publish(ctx, table.Name, pages, func(_ context.Context, page notify.Page) (string, error) {
			return rendered[page.Offset], nil
		})
		if len(created) > 0 {
			report.Created[table.Name] = created
			logger.Warn("Posted new ranking messages; add their ids to the configuration to edit them in place",
				slog.String("type", "sys"),
				slog.String("table", table.Name),
				slog.Any("message_ids", created),
			)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if p.archiver != nil {
		key := p.archiver.ReportKey(p.cfg.Scope.Location, table.Name, report.Started)
		body := strings.Join(report.Reports[table.Name], "\n\n")
		if err := p.archiver.ArchiveReport(ctx, key, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RenderPage ranks one window of a table and formats it as a message.
func (p *Pipeline) RenderPage(ctx context.Context, table Table, offset, limit int, at time.Time) (string, error) {
	q := ranking.Query{
		Metric:            table.Metric,
		VelocityThreshold: p.cfg.Threshold,
		Limit:             limit,
		Offset:            offset,
	}
	if table.Gathering {
		gatherable := true
		q.Gatherable = &gatherable
	}

	rows, err := p.engine.Rank(ctx, q)
	if err != nil {
		return "", err
	}
	return utils.FormatRanking(utils.RankingTable{
		Location:  p.cfg.Scope.Location,
		Threshold: p.cfg.Threshold,
		NoCraft:   table.NoCraft,
		Gathering: table.Gathering,
		UpdatedAt: at,
		Rows:      rows,
	}), nil
}
