// Package universalis fetches market board trade history from the Universalis API.
package universalis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sony/gobreaker"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/metrics"
)

const (
	DefaultBaseURL = "https://universalis.app"
	historyPath    = "/api/v2/history/{location}/{item}"
	marketablePath = "/api/marketable"
)

var (
	// ErrNotFound is returned when Universalis has no history for the item.
	ErrNotFound = errors.New("universalis: item not found")
	// ErrNoData is returned when the response carries no payload.
	ErrNoData = errors.New("universalis: empty response")
	// ErrUnavailable is returned without a request while the circuit breaker
	// is open.
	ErrUnavailable = errors.New("universalis: unavailable")
)

// Entry is a single completed trade.
type Entry struct {
	HQ           bool  `json:"hq"`
	PricePerUnit int64 `json:"pricePerUnit"`
	Quantity     int64 `json:"quantity"`
	// Unix seconds.
	Timestamp int64 `json:"timestamp"`
}

func (e Entry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// History is the trade history of one item, newest entry first.
type History struct {
	ItemID              int64   `json:"itemID"`
	RegularSaleVelocity float64 `json:"regularSaleVelocity"`
	NQSaleVelocity      float64 `json:"nqSaleVelocity"`
	HQSaleVelocity      float64 `json:"hqSaleVelocity"`
	Entries             []Entry `json:"entries"`
}

type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	NotFoundTTL       time.Duration
	NotFoundCacheSize int
}

type notFoundEntry struct {
	timestamp time.Time
}

type Client struct {
	http     *resty.Client
	breaker  *gobreaker.CircuitBreaker
	notFound *lru.Cache
	ttl      time.Duration
	metrics  *metrics.Registry
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config, reg *metrics.Registry, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultHTTPTimeout
	}
	if cfg.NotFoundTTL <= 0 {
		cfg.NotFoundTTL = config.NotFoundCacheTTL
	}
	if cfg.NotFoundCacheSize <= 0 {
		cfg.NotFoundCacheSize = config.NotFoundCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New(cfg.NotFoundCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create not-found cache: %w", err)
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "universalis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		// Missing items are an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("type", "ingest"),
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Client{
		http:     httpClient,
		breaker:  breaker,
		notFound: cache,
		ttl:      cfg.NotFoundTTL,
		metrics:  reg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// History fetches up to entries trades for itemID in location.
func (c *Client) History(ctx context.Context, location string, itemID int64, entries int) (*History, error) {
	key := location + "/" + strconv.FormatInt(itemID, 10)
	if v, ok := c.notFound.Get(key); ok {
		if c.now().Sub(v.(notFoundEntry).timestamp) < c.ttl {
			return nil, ErrNotFound
		}
		c.notFound.Remove(key)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchHistory(ctx, location, itemID, entries)
	})
	c.metrics.ObserveFetchDuration(strconv.Itoa(entries), time.Since(start))

	if errors.Is(err, ErrNotFound) {
		c.notFound.Add(key, notFoundEntry{timestamp: c.now()})
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*History), nil
}

func (c *Client) fetchHistory(ctx context.Context, location string, itemID int64, entries int) (*History, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"location": location,
			"item":     strconv.FormatInt(itemID, 10),
		}).
		SetQueryParam("entriesToReturn", strconv.Itoa(entries)).
		Get(historyPath)
	if err != nil {
		return nil, fmt.Errorf("history request for item %d: %w", itemID, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("history request for item %d: unexpected status %d", itemID, resp.StatusCode())
	}

	return decodeHistory(resp.Body())
}

func decodeHistory(body []byte) (*History, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, ErrNoData
	}

	var history History
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return &history, nil
}

// Marketable returns the ids of every item that can be listed on the market board.
func (c *Client) Marketable(ctx context.Context) ([]int64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(marketablePath)
	if err != nil {
		return nil, fmt.Errorf("marketable request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("marketable request: unexpected status %d", resp.StatusCode())
	}

	var ids []int64
	if err := json.Unmarshal(resp.Body(), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode marketable ids: %w", err)
	}
	return ids, nil
}
