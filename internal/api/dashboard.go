package api

import (
	"context"
	"net/http"
)

type DashboardService struct {
	c *Client
}

func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: "/dashboard/stats"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
