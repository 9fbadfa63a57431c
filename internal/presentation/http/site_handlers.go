package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	sitedata "seoflood/app/internal/data/site"
)

type listSitesInput struct {
	OwnerID string `query:"ownerId" doc:"Only list sites of this owner"`
}

type listSitesResponse struct {
	Body struct {
		Sites []sitedata.Site `json:"sites"`
	}
}

type sitePagesInput struct {
	ID string `path:"id"`
}

type sitePagesResponse struct {
	Body struct {
		Pages []sitedata.Page `json:"pages"`
	}
}

type healthResponse struct {
	Status int
	Body   struct {
		Status    string `json:"status"`
		Database  string `json:"database"`
		Generator string `json:"generator"`
	}
}

func (s *Server) registerSiteRoutes() {
	huma.Get(s.api, "/sites", s.listSitesHandler, summary("List published sites"))
	huma.Get(s.api, "/sites/{id}/pages", s.sitePagesHandler, summary("List the pages of a published site"))
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, summary("Health check"))
}

func (s *Server) listSitesHandler(ctx context.Context, input *listSitesInput) (*listSitesResponse, error) {
	sites, err := s.sites.ListSites(ctx, input.OwnerID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing sites", nil)
	}

	resp := &listSitesResponse{}
	resp.Body.Sites = sites
	return resp, nil
}

func (s *Server) sitePagesHandler(ctx context.Context, input *sitePagesInput) (*sitePagesResponse, error) {
	pages, err := s.sites.ListPages(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing site pages", logrus.Fields{"site_id": input.ID})
	}

	resp := &sitePagesResponse{}
	resp.Body.Pages = pages
	return resp, nil
}

// healthHandler reports degraded when the database is unreachable. A missing generator only
// means template-only output, so it does not fail the check.
func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.Generator = "ready"

	if err := s.sites.Ping(ctx); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Status = stdhttp.StatusServiceUnavailable
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
	}

	if !s.llmEnabled {
		resp.Body.Generator = "template-only"
	}

	return resp, nil
}
