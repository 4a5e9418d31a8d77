// Package planner provides an HTTP client for the Planner Agent, the external
// pipeline that turns a queued article into generated content.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dvernon0786/Infin8Content-sub005/internal/config"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/queue"
)

// Compile-time interface verification.
var _ queue.GenerationTrigger = (*Client)(nil)

// triggerRequest is the generation trigger payload. The context snapshots
// travel with the trigger so the planner never reads workflow state directly.
type triggerRequest struct {
	ArticleID         uuid.UUID              `json:"article_id"`
	WorkflowID        uuid.UUID              `json:"workflow_id"`
	OrgID             string                 `json:"org_id"`
	Keyword           string                 `json:"keyword"`
	Subtopics         []domain.Subtopic      `json:"subtopics,omitempty"`
	ICPContext        map[string]interface{} `json:"icp_context,omitempty"`
	CompetitorContext map[string]interface{} `json:"competitor_context,omitempty"`
}

// Client dispatches generation triggers to the Planner Agent. Dispatches are
// rate limited client-side so a large fan-out cannot flood the planner.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a planner client from configuration.
func NewClient(cfg config.PlannerConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("planner base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:     logger.With().Str("component", "planner_client").Logger(),
	}, nil
}

// TriggerGeneration implements queue.GenerationTrigger. It blocks on the rate
// limiter, then posts the trigger; any non-2xx response is an error.
func (c *Client) TriggerGeneration(ctx context.Context, article *domain.Article) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for planner rate limit: %w", err)
	}

	payload, err := json.Marshal(triggerRequest{
		ArticleID:         article.ID,
		WorkflowID:        article.WorkflowID,
		OrgID:             article.OrgID,
		Keyword:           article.Keyword,
		Subtopics:         article.Subtopics,
		ICPContext:        article.ICPContext,
		CompetitorContext: article.CompetitorContext,
	})
	if err != nil {
		return fmt.Errorf("marshal planner trigger: %w", err)
	}

	url := c.baseURL + "/api/v1/articles/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build planner trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch planner trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("planner returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	c.logger.Debug().
		Str("article_id", article.ID.String()).
		Str("keyword", article.Keyword).
		Msg("generation trigger dispatched")

	return nil
}
