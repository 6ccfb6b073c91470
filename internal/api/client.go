package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ricordi-app/ricordi-sync/internal/config"
	"github.com/ricordi-app/ricordi-sync/internal/constants"
	"github.com/ricordi-app/ricordi-sync/internal/httpx"
	"github.com/ricordi-app/ricordi-sync/internal/logging"
	"github.com/ricordi-app/ricordi-sync/internal/models"
)

// retryLogger adapts our logger to the retryablehttp.LeveledLogger interface.
// Only warnings and errors are forwarded; retry chatter stays out of the log.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Msgf("retry: %s %v", msg, keysAndValues)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Msgf("retry: %s %v", msg, keysAndValues)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{})  {}
func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

// Client is the Ricordi server API client. It is constructed once and passed
// by reference to every coordinator; there is no package-level instance.
type Client struct {
	httpClient   *nethttp.Client // retry-wrapped, fixed timeout
	uploadClient *nethttp.Client // no retry: upload failures are isolated, not retried
	askClient    *nethttp.Client // no timeout, cancellation only
	baseURL      string
	token        string
	logger       *logging.Logger
}

// NewClient creates a new API client from the given configuration.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpx.NewClient()
	retryClient.RetryMax = constants.RetryMax
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}

	return &Client{
		httpClient:   retryClient.StandardClient(),
		uploadClient: httpx.NewClient(),
		askClient:    httpx.NewLongRequestClient(),
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		token:        cfg.APIToken,
		logger:       logger,
	}, nil
}

// setHeaders attaches authentication and content negotiation headers.
func (c *Client) setHeaders(req *nethttp.Request, contentType string) {
	req.Header.Set("Authorization", "Token "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
}

// doJSON performs a JSON request with authentication and transient retry.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// QueueStatus fetches the current processing queue snapshot.
func (c *Client) QueueStatus(ctx context.Context) (*models.JobSnapshot, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodGet, "/queue-status", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, statusError(resp)
	}

	var snap models.JobSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode queue status: %w", err)
	}
	return &snap, nil
}

// ListPhotos fetches the photo collection.
func (c *Client) ListPhotos(ctx context.Context) ([]models.Photo, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodGet, "/photos", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, statusError(resp)
	}

	var photos []models.Photo
	if err := json.NewDecoder(resp.Body).Decode(&photos); err != nil {
		return nil, fmt.Errorf("failed to decode photo list: %w", err)
	}
	return photos, nil
}

// UploadPhoto uploads a single file as multipart form data.
// The request is not retried: a failed upload is an isolated item failure the
// upload coordinator reports per item.
func (c *Client) UploadPhoto(ctx context.Context, path string) (*models.UploadResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.baseURL+"/photos", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, writer.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusCreated {
		return nil, statusError(resp)
	}

	var result models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &result, nil
}

// BulkAnalyze enqueues the given photos for analysis with the chosen
// processing profile. Returns the server's immediate queued count; it does
// not wait for analysis completion.
func (c *Client) BulkAnalyze(ctx context.Context, ids []string, profile string) (int, error) {
	path := "/photos/bulk-analyze"
	if profile != "" {
		path += "?profile=" + url.QueryEscape(profile)
	}

	resp, err := c.doJSON(ctx, nethttp.MethodPost, path, ids)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK && resp.StatusCode != nethttp.StatusAccepted {
		return 0, statusError(resp)
	}

	var result struct {
		Queued int `json:"queued"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode bulk-analyze response: %w", err)
	}
	return result.Queued, nil
}

// StopAllAnalyses clears the server-side analysis queue.
func (c *Client) StopAllAnalyses(ctx context.Context) (int, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodPost, "/photos/stop-all-analyses", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return 0, statusError(resp)
	}

	var result struct {
		QueueCleared int `json:"queue_cleared"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode stop-all response: %w", err)
	}
	return result.QueueCleared, nil
}

// DeletePhoto removes a single photo from the library.
func (c *Client) DeletePhoto(ctx context.Context, id string) error {
	resp, err := c.doJSON(ctx, nethttp.MethodDelete, "/photos/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusNoContent && resp.StatusCode != nethttp.StatusOK {
		return statusError(resp)
	}
	return nil
}

// AskRequest is the body for POST /memory/ask.
type AskRequest struct {
	Question string `json:"question"`
	Model    string `json:"model,omitempty"`
}

// Ask runs the long-running memory query. No fixed timeout and no retry: the
// request ends when the server answers or the context is cancelled, and a
// cancelled request must never be reissued.
func (c *Client) Ask(ctx context.Context, question, model string) (*models.AskAnswer, error) {
	jsonData, err := json.Marshal(AskRequest{Question: question, Model: model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ask request: %w", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.baseURL+"/memory/ask", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "application/json")

	resp, err := c.askClient.Do(req)
	if err != nil {
		// Preserve context.Canceled so the caller can tell cancellation
		// apart from genuine transport failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ask request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, statusError(resp)
	}

	var answer models.AskAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("failed to decode ask response: %w", err)
	}
	return &answer, nil
}
