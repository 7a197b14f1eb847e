// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/memex-dev/memex/internal/catalog"
	"github.com/memex-dev/memex/internal/query"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search-images",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Search images by meaning",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-catalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog",
		Summary:     "List catalog records",
		Tags:        []string{"catalog"},
	}, s.handleListCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-catalog",
		Method:      http.MethodPost,
		Path:        "/api/v1/catalog/refresh",
		Summary:     "Rescan sources and warm embeddings",
		Tags:        []string{"catalog"},
	}, s.handleRefreshCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness and component status",
		Tags:        []string{"system"},
	}, s.handleHealthz)

	// Image bytes and the embedded UI are plain chi routes; neither fits
	// a JSON schema.
	s.router.Get("/images/*", s.handleImage)
	s.router.Get("/", s.handleIndex)
}

// --- Request/Response types for huma ---

type searchInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"Free-text query"`
		K     int    `json:"k,omitempty" minimum:"0" maximum:"50" doc:"Number of results, default 5"`
	}
}
type searchOutput struct {
	Body SearchResult
}

type catalogListOutput struct {
	Body CatalogList
}

type refreshOutput struct {
	Body catalog.WarmupReport
}

type healthzOutput struct {
	Body StatusReport
}

// --- Handlers ---

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	if err := s.checkSearchLimit(ctx); err != nil {
		return nil, err
	}

	k := input.Body.K
	if k <= 0 {
		k = query.DefaultTopK
	}

	result, err := s.services.Search().Search(ctx, input.Body.Query, k)
	if err != nil {
		return nil, humaError(err, "search failed")
	}
	return &searchOutput{Body: *result}, nil
}

func (s *Server) handleListCatalog(ctx context.Context, _ *struct{}) (*catalogListOutput, error) {
	list, err := s.services.Catalog().List(ctx)
	if err != nil {
		return nil, humaError(err, "listing catalog")
	}
	return &catalogListOutput{Body: *list}, nil
}

func (s *Server) handleRefreshCatalog(ctx context.Context, _ *struct{}) (*refreshOutput, error) {
	report, err := s.services.Catalog().Refresh(ctx)
	if err != nil {
		return nil, humaError(err, "refreshing catalog")
	}
	return &refreshOutput{Body: *report}, nil
}

func (s *Server) handleHealthz(ctx context.Context, _ *struct{}) (*healthzOutput, error) {
	report, err := s.services.Status().Status(ctx)
	if err != nil {
		return nil, humaError(err, "reading status")
	}
	return &healthzOutput{Body: *report}, nil
}

// handleImage serves image bytes for a catalog identifier. The on-disk
// path comes from the catalog record, never from joining request input
// onto a directory.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	identifier, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || identifier == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid image identifier")
		return
	}

	path, err := s.services.Catalog().ImagePath(r.Context(), identifier)
	if err != nil {
		if memexerr.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "unknown image: "+identifier)
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "resolving image")
		return
	}

	http.ServeFile(w, r, path)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(indexHTML); err != nil {
		slog.Warn("writing index page", "error", err)
	}
}

// humaError converts a classified error into the matching huma status
// error. Provider failures always map to 502 so an upstream outage reads
// as a bad gateway, whatever the upstream's own status was.
func humaError(err error, msg string) error {
	if memexerr.IsProviderFailure(err) {
		return huma.Error502BadGateway(err.Error())
	}
	switch memexerr.HTTPStatus(err) {
	case http.StatusNotFound:
		return huma.Error404NotFound(err.Error())
	case http.StatusBadRequest:
		return huma.Error400BadRequest(err.Error())
	case http.StatusUnauthorized:
		return huma.Error401Unauthorized(err.Error())
	case http.StatusForbidden:
		return huma.Error403Forbidden(err.Error())
	case http.StatusTooManyRequests:
		return huma.NewError(http.StatusTooManyRequests, err.Error())
	case http.StatusGatewayTimeout:
		return huma.Error504GatewayTimeout(err.Error())
	case http.StatusBadGateway:
		return huma.Error502BadGateway(err.Error())
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(`{"error":` + strconv.Quote(msg) + `}`)); err != nil {
		slog.Warn("failed to write error response", "error", err)
	}
}
