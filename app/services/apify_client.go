// Package services contains external integrations and supporting services
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scrapeflow/scrapeflow-api/config"
	"github.com/scrapeflow/scrapeflow-api/models"
)

// RunStatus is the normalized state of a provider scraping run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusAborted   RunStatus = "aborted"
)

var (
	// ErrJobStartFailed indicates the provider rejected or failed the run start
	ErrJobStartFailed = errors.New("failed to start scraping run")

	// ErrResultsUnavailable indicates the run has no dataset yet; the caller
	// should retry on a later poll.
	ErrResultsUnavailable = errors.New("scraping results not yet available")
)

// ApifyClient talks to the Apify actor API to start and track hashtag
// scraping runs.
type ApifyClient interface {
	// StartRun launches a scraping run and returns the provider's run ID.
	StartRun(ctx context.Context, hashtag string, resultsLimit int) (string, error)
	// RunStatus returns the normalized status plus the provider's raw status
	// string for display.
	RunStatus(ctx context.Context, runID string) (RunStatus, string, error)
	// RunResults fetches the scraped items of a succeeded run.
	RunResults(ctx context.Context, runID string) ([]models.ScrapeResult, error)
}

type httpApifyClient struct {
	cfg    config.ApifyConfig
	client *http.Client
}

// NewApifyClient creates an Apify client from configuration
func NewApifyClient(cfg config.ApifyConfig) ApifyClient {
	return &httpApifyClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *httpApifyClient) baseURL() string {
	if c.cfg.BaseURL != "" {
		return strings.TrimRight(c.cfg.BaseURL, "/")
	}
	return "https://api.apify.com"
}

func (c *httpApifyClient) actorID() string {
	if c.cfg.ActorID != "" {
		return c.cfg.ActorID
	}
	return "apify~instagram-hashtag-scraper"
}

// StartRun launches the hashtag scraper actor
func (c *httpApifyClient) StartRun(ctx context.Context, hashtag string, resultsLimit int) (string, error) {
	input := map[string]any{
		"hashtags":     []string{hashtag},
		"resultsLimit": resultsLimit,
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/v2/acts/%s/runs?token=%s", c.baseURL(), c.actorID(), url.QueryEscape(c.cfg.APIToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrJobStartFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readErrorBody(resp.Body)
		return "", fmt.Errorf("%w: http status %d, body: %s", ErrJobStartFailed, resp.StatusCode, body)
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrJobStartFailed, err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: empty run id", ErrJobStartFailed)
	}

	return out.Data.ID, nil
}

// RunStatus polls the provider for the run state
func (c *httpApifyClient) RunStatus(ctx context.Context, runID string) (RunStatus, string, error) {
	run, err := c.getRun(ctx, runID)
	if err != nil {
		return RunStatusFailed, "", err
	}

	return MapProviderStatus(run.Status), run.Status, nil
}

// RunResults fetches items from the run's default dataset
func (c *httpApifyClient) RunResults(ctx context.Context, runID string) ([]models.ScrapeResult, error) {
	run, err := c.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.DefaultDatasetID == "" {
		return nil, ErrResultsUnavailable
	}

	u := fmt.Sprintf("%s/v2/datasets/%s/items?token=%s", c.baseURL(), run.DefaultDatasetID, url.QueryEscape(c.cfg.APIToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readErrorBody(resp.Body)
		return nil, fmt.Errorf("apify dataset items http status: %d, body: %s", resp.StatusCode, body)
	}

	var items []models.ScrapeResult
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}

	return items, nil
}

type apifyRun struct {
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

func (c *httpApifyClient) getRun(ctx context.Context, runID string) (*apifyRun, error) {
	u := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s", c.baseURL(), url.QueryEscape(runID), url.QueryEscape(c.cfg.APIToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readErrorBody(resp.Body)
		return nil, fmt.Errorf("apify run http status: %d, body: %s", resp.StatusCode, body)
	}

	var out struct {
		Data apifyRun `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	return &out.Data, nil
}

// MapProviderStatus normalizes the provider's run status. Unknown states are
// treated as failures so campaigns never hang on a state the platform does
// not understand.
func MapProviderStatus(raw string) RunStatus {
	switch strings.ToUpper(raw) {
	case "READY", "RUNNING":
		return RunStatusRunning
	case "SUCCEEDED":
		return RunStatusSucceeded
	case "ABORTED", "ABORTING":
		return RunStatusAborted
	default:
		return RunStatusFailed
	}
}

func readErrorBody(r io.Reader) string {
	bodyBytes, readErr := io.ReadAll(io.LimitReader(r, 4096))
	body := strings.TrimSpace(string(bodyBytes))
	if readErr != nil {
		body = fmt.Sprintf("unable to read response body: %v", readErr)
	}
	return body
}
