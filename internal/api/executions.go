package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// ExecutionsService covers /executions.
type ExecutionsService struct {
	c *Client
}

func (s *ExecutionsService) Create(ctx context.Context, in ExecutionInput) (*Execution, error) {
	var out Execution
	if err := s.c.Do(ctx, Request{Method: http.MethodPost, Path: "/executions", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List passes filters through as query parameters. Empty values are dropped.
func (s *ExecutionsService) List(ctx context.Context, filters url.Values) ([]Execution, error) {
	query := url.Values{}
	for k, vs := range filters {
		for _, v := range vs {
			if v != "" {
				query.Add(k, v)
			}
		}
	}
	var out []Execution
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: "/executions", Query: query}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ExecutionsService) Get(ctx context.Context, id string) (*Execution, error) {
	var out Execution
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: pathf("/executions/%s", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScreenshotURL returns the address of a step screenshot for embedding. It
// makes no call.
func (s *ExecutionsService) ScreenshotURL(executionID string, stepNumber int) string {
	return s.c.baseURL + s.screenshotPath(executionID, stepNumber)
}

// DownloadScreenshot fetches the screenshot bytes with the session's
// credentials and writes them to w.
func (s *ExecutionsService) DownloadScreenshot(ctx context.Context, executionID string, stepNumber int, w io.Writer) error {
	req := Request{
		Method: http.MethodGet,
		Path:   s.screenshotPath(executionID, stepNumber),
		Header: http.Header{"Accept": {"image/*"}},
	}
	return s.c.Do(ctx, req, w)
}

func (s *ExecutionsService) screenshotPath(executionID string, stepNumber int) string {
	return pathf("/executions/%s/screenshot/%s", executionID, strconv.Itoa(stepNumber))
}
