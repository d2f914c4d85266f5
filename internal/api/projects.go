package api

import (
	"context"
	"net/http"
)

// ProjectsService is REST CRUD over /projects.
type ProjectsService struct {
	c *Client
}

func (s *ProjectsService) Create(ctx context.Context, in ProjectInput) (*Project, error) {
	var out Project
	if err := s.c.Do(ctx, Request{Method: http.MethodPost, Path: "/projects", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ProjectsService) List(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: "/projects"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ProjectsService) Get(ctx context.Context, id string) (*Project, error) {
	var out Project
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: pathf("/projects/%s", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sends only the fields set on in; the rest keep their values.
func (s *ProjectsService) Update(ctx context.Context, id string, in ProjectUpdate) (*Project, error) {
	var out Project
	if err := s.c.Do(ctx, Request{Method: http.MethodPut, Path: pathf("/projects/%s", id), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ProjectsService) Delete(ctx context.Context, id string) error {
	return s.c.Do(ctx, Request{Method: http.MethodDelete, Path: pathf("/projects/%s", id)}, nil)
}
