package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// TestsService is CRUD over /tests plus script parsing and document-driven
// generation.
type TestsService struct {
	c *Client
}

func (s *TestsService) Create(ctx context.Context, in TestInput) (*Test, error) {
	var out Test
	if err := s.c.Do(ctx, Request{Method: http.MethodPost, Path: "/tests", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all tests, or only those of projectID when it is non-empty.
func (s *TestsService) List(ctx context.Context, projectID string) ([]Test, error) {
	var query url.Values
	if projectID != "" {
		query = url.Values{"project_id": {projectID}}
	}
	var out []Test
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: "/tests", Query: query}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TestsService) Get(ctx context.Context, id string) (*Test, error) {
	var out Test
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: pathf("/tests/%s", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sends only the fields set on in.
func (s *TestsService) Update(ctx context.Context, id string, in TestUpdate) (*Test, error) {
	var out Test
	if err := s.c.Do(ctx, Request{Method: http.MethodPut, Path: pathf("/tests/%s", id), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TestsService) Delete(ctx context.Context, id string) error {
	return s.c.Do(ctx, Request{Method: http.MethodDelete, Path: pathf("/tests/%s", id)}, nil)
}

// Parse sends a natural-language script and returns the service's parse
// result as-is.
func (s *TestsService) Parse(ctx context.Context, script string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"script": script}
	if err := s.c.Do(ctx, Request{Method: http.MethodPost, Path: "/tests/parse", Body: body}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateFromDocument uploads doc as multipart form data. The project_id
// field is only sent when projectID is non-empty.
func (s *TestsService) GenerateFromDocument(ctx context.Context, doc Document, projectID string) (json.RawMessage, error) {
	form := &Multipart{
		Files: []FormFile{{
			Field:       "file",
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Content:     doc.Content,
		}},
	}
	if projectID != "" {
		form.Fields = append(form.Fields, FormField{Name: "project_id", Value: projectID})
	}

	var out json.RawMessage
	req := Request{
		Method:   http.MethodPost,
		Path:     "/tests/generate-from-document",
		Body:     form,
		Encoding: EncodingMultipart,
	}
	if err := s.c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
