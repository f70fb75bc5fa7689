// Package api serves rankings and item statistics over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
	"github.com/xivmarket/market-calculator/marketboard/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Ranker interface {
	Rank(ctx context.Context, q ranking.Query) ([]ranking.Row, error)
}

type ItemGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Item, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]*models.Item, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Ranker   Ranker
	Items    ItemGetter
	Search   Searcher
	DB       Pinger
	Gatherer prometheus.Gatherer
	// Defaults for omitted ranking parameters.
	MinSales    float64
	ResultLimit int
	Logger      *slog.Logger
}

type Server struct {
	deps   Deps
	router *gin.Engine
	logger *slog.Logger
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ResultLimit <= 0 {
		deps.ResultLimit = config.DefaultResultLimit
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{deps: deps, router: gin.New(), logger: deps.Logger}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	if s.deps.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/rankings", s.rankings)
		v1.GET("/rankings/export", s.exportRankings)
		v1.GET("/items/:id", s.item)
		v1.GET("/search", s.search)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening",
			slog.String("type", "sys"),
			slog.String("addr", addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "HTTP request",
			slog.String("type", "api"),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type rowResponse struct {
	ItemID      int64   `json:"item_id"`
	Name        string  `json:"name"`
	Metric      float64 `json:"metric"`
	Velocity    float64 `json:"velocity"`
	AveCost     *int64  `json:"ave_cost"`
	CostToCraft *int64  `json:"cost_to_craft"`
}

func toRowResponses(rows []ranking.Row) []rowResponse {
	out := make([]rowResponse, len(rows))
	for i, r := range rows {
		out[i] = rowResponse{
			ItemID:      r.ItemID,
			Name:        r.Name,
			Metric:      r.Metric,
			Velocity:    r.Velocity,
			AveCost:     r.AveCost,
			CostToCraft: r.CostToCraft,
		}
	}
	return out
}

// parseRankingQuery reads a ranking query from URL parameters.
func (s *Server) parseRankingQuery(c *gin.Context) (ranking.Query, error) {
	q := ranking.Query{
		Metric:            c.DefaultQuery("metric", ranking.MetricCraftProfitPerDay),
		VelocityThreshold: s.deps.MinSales,
		Limit:             s.deps.ResultLimit,
	}

	var err error
	if v, ok := c.GetQuery("min_sales"); ok {
		if q.VelocityThreshold, err = strconv.ParseFloat(v, 64); err != nil || q.VelocityThreshold < 0 {
			return q, fmt.Errorf("invalid min_sales %q", v)
		}
	}
	if v, ok := c.GetQuery("limit"); ok {
		if q.Limit, err = strconv.Atoi(v); err != nil || q.Limit < 0 || q.Limit > config.MaxResultLimit {
			return q, fmt.Errorf("limit must be between 0 and %d", config.MaxResultLimit)
		}
	}
	if v, ok := c.GetQuery("offset"); ok {
		if q.Offset, err = strconv.Atoi(v); err != nil || q.Offset < 0 {
			return q, fmt.Errorf("invalid offset %q", v)
		}
	}
	if v, ok := c.GetQuery("gatherable"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("invalid gatherable %q", v)
		}
		q.Gatherable = &b
	}
	if v, ok := c.GetQuery("max_level"); ok {
		level, err := strconv.Atoi(v)
		if err != nil || level < 1 {
			return q, fmt.Errorf("invalid max_level %q", v)
		}
		q.MaxRecipeLevel = &level
	}
	return q, q.Validate()
}

func (s *Server) rankings(c *gin.Context) {
	q, err := s.parseRankingQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := s.deps.Ranker.Rank(c.Request.Context(), q)
	if err != nil {
		s.serverError(c, "rank", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metric":    q.Metric,
		"min_sales": q.VelocityThreshold,
		"offset":    q.Offset,
		"rows":      toRowResponses(rows),
	})
}

// exportRankings writes one worksheet per metric.
func (s *Server) exportRankings(c *gin.Context) {
	q, err := s.parseRankingQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tables := make(map[string][]ranking.Row, len(ranking.Metrics))
	for _, metric := range ranking.Metrics {
		mq := q
		mq.Metric = metric
		rows, err := s.deps.Ranker.Rank(c.Request.Context(), mq)
		if err != nil {
			s.serverError(c, "export", err)
			return
		}
		tables[metric] = rows
	}

	var buf bytes.Buffer
	if err := utils.ExportRankings(&buf, tables); err != nil {
		s.serverError(c, "export", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="rankings.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

type itemResponse struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Gatherable          bool      `json:"gatherable"`
	AveCost             *int64    `json:"ave_cost"`
	AveNQCost           *int64    `json:"ave_nq_cost"`
	AveHQCost           *int64    `json:"ave_hq_cost"`
	RegularSaleVelocity *float64  `json:"regular_sale_velocity"`
	NQSaleVelocity      *float64  `json:"nq_sale_velocity"`
	HQSaleVelocity      *float64  `json:"hq_sale_velocity"`
	CostToCraft         *int64    `json:"cost_to_craft"`
	CraftProfit         *int64    `json:"craft_profit"`
	CraftProfitPerDay   *float64  `json:"craft_profit_per_day"`
	RawProfitPerDay     *float64  `json:"raw_profit_per_day"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toItemResponse(item *models.Item) itemResponse {
	return itemResponse{
		ID:                  item.ID,
		Name:                item.Name,
		Gatherable:          item.Gatherable,
		AveCost:             item.AveCost,
		AveNQCost:           item.AveNQCost,
		AveHQCost:           item.AveHQCost,
		RegularSaleVelocity: item.RegularSaleVelocity,
		NQSaleVelocity:      item.NQSaleVelocity,
		HQSaleVelocity:      item.HQSaleVelocity,
		CostToCraft:         item.CostToCraft,
		CraftProfit:         item.CraftProfit,
		CraftProfitPerDay:   item.CraftProfitPerDay,
		RawProfitPerDay:     item.RawProfitPerDay,
		UpdatedAt:           item.UpdatedAt,
	}
}

func (s *Server) item(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	item, err := s.deps.Items.GetByID(c.Request.Context(), id)
	if repositories.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("item %d not found", id)})
		return
	}
	if err != nil {
		s.serverError(c, "get item", err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (s *Server) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q"})
		return
	}
	limit := 10
	if v, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > config.MaxResultLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", config.MaxResultLimit)})
			return
		}
		limit = n
	}

	items, err := s.deps.Search.Search(c.Request.Context(), query, limit)
	if err != nil {
		s.serverError(c, "search", err)
		return
	}
	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = toItemResponse(item)
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "items": out})
}

func (s *Server) serverError(c *gin.Context, op string, err error) {
	s.logger.Error("API request failed",
		slog.String("type", "api"),
		slog.String("operation", op),
		slog.Any("error", err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
