package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"imgfetch/pkg/errors"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
	"imgfetch/pkg/models"
)

// Client talks to the remote image server
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a new API client for baseURL
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": "imgfetch/1.0",
			"Accept":     "application/json, image/*;q=0.9, */*;q=0.8",
		},
		baseURL: NormalizeBaseURL(baseURL),
		logger:  logger.OrDefault(log).WithComponent("api"),
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetMetrics enables request latency recording
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// BaseURL returns the normalized server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	c.metrics.ObserveRequest(req.URL.Path, start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, float64(duration.Microseconds())/1000)
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &errors.Error{
				Type:    errors.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to encode request body: %v", err),
			}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends the request and returns the body of a successful response
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}
	return body, nil
}

// doJSON sends the request and decodes a JSON response into target
func (c *Client) doJSON(req *http.Request, target interface{}) error {
	body, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          req.URL.String(),
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    http.StatusOK,
		}
	}
	return nil
}

// checkResponseStatus maps non-2xx responses onto typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := http.StatusText(resp.StatusCode)
	if snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256)); len(bytes.TrimSpace(snippet)) > 0 {
		message = string(bytes.TrimSpace(snippet))
	}

	errType := errors.ErrorTypeForStatus(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"type":   string(errType),
	}
	if errType == errors.ErrorTypeServerError {
		c.logger.ErrorWithFields("server error", fields)
	} else {
		c.logger.WarnWithFields("request rejected", fields)
	}

	return &errors.Error{
		Type:    errType,
		Message: message,
		Code:    resp.StatusCode,
	}
}

// StartDownload asks the server to begin collecting count images for query.
// The server returns no job id; progress is polled with FetchImage.
func (c *Client) StartDownload(ctx context.Context, query string, count int) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+DownloadEndpoint, models.DownloadRequest{
		Query: query,
		Count: count,
	})
	if err != nil {
		return err
	}

	if _, err := c.do(req); err != nil {
		c.logger.ErrorWithFields("failed to start download", map[string]interface{}{
			"query": query,
			"count": count,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// FetchImage returns one image payload for the query
func (c *Client) FetchImage(ctx context.Context, category string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, FetchImageURL(c.baseURL, category), nil)
	if err != nil {
		return nil, err
	}

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: "empty image payload",
			Code:    http.StatusOK,
		}
	}
	return data, nil
}

// SearchLocal returns one page of search results in server order
func (c *Client) SearchLocal(ctx context.Context, query string, page, limit int) ([]models.Image, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+SearchLocalEndpoint, models.SearchRequest{
		Query: query,
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	var response models.ImagesResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("search page received", map[string]interface{}{
		"query": query,
		"page":  page,
		"count": len(response.Images),
	})
	return response.Images, nil
}

// Gallery lists the images of the given categories
func (c *Client) Gallery(ctx context.Context, categories []string) ([]models.Image, error) {
	req, err := c.newRequest(ctx, http.MethodGet, GalleryURL(c.baseURL, categories), nil)
	if err != nil {
		return nil, err
	}

	var response models.ImagesResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Images, nil
}

// Categories lists every category known to the server
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+CategoriesEndpoint, nil)
	if err != nil {
		return nil, err
	}

	var response models.CategoriesResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Categories, nil
}

// DownloadImage fetches the file behind an Image.URL
func (c *Client) DownloadImage(ctx context.Context, imagePath string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, ImageFileURL(c.baseURL, imagePath), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}
