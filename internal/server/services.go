// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package server

import (
	"context"
	"net/url"

	"github.com/memex-dev/memex/internal/catalog"
	memexerr "github.com/memex-dev/memex/pkg/errors"
	"github.com/memex-dev/memex/pkg/health"
	"github.com/memex-dev/memex/pkg/types"
)

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use NewServices to ensure all required services are provided.
type Services struct {
	search     SearchService
	catalogSvc CatalogService
	status     StatusService
}

// NewServices creates a Services instance with validation.
// Returns an error if any required service is nil.
func NewServices(search SearchService, catalogSvc CatalogService, status StatusService) (*Services, error) {
	if search == nil {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue, "search service is required")
	}
	if catalogSvc == nil {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue, "catalog service is required")
	}
	if status == nil {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue, "status service is required")
	}
	return &Services{
		search:     search,
		catalogSvc: catalogSvc,
		status:     status,
	}, nil
}

// Search returns the search service.
func (s *Services) Search() SearchService {
	return s.search
}

// Catalog returns the catalog service.
func (s *Services) Catalog() CatalogService {
	return s.catalogSvc
}

// Status returns the status service.
func (s *Services) Status() StatusService {
	return s.status
}

// SearchService ranks the catalog against a free-text query.
type SearchService interface {
	Search(ctx context.Context, query string, k int) (*SearchResult, error)
}

// CatalogService exposes the record set behind the catalog endpoints.
type CatalogService interface {
	List(ctx context.Context) (*CatalogList, error)
	Refresh(ctx context.Context) (*catalog.WarmupReport, error)
	// ImagePath resolves an identifier to the on-disk path of its image.
	// Unknown identifiers return a not-found error; the path never derives
	// from request input by any other route.
	ImagePath(ctx context.Context, identifier string) (string, error)
}

// StatusService reports component health for the liveness endpoint.
type StatusService interface {
	Status(ctx context.Context) (*StatusReport, error)
}

// SearchResult is the REST representation of one ranked query.
type SearchResult struct {
	QueryID string             `json:"query_id" doc:"Unique ID assigned to this query"`
	Model   string             `json:"model" doc:"Embedding model used"`
	Results []SearchResultItem `json:"results" doc:"Matches in descending score order"`
}

// SearchResultItem is one ranked match.
type SearchResultItem struct {
	Identifier string           `json:"identifier" doc:"Catalog identifier"`
	Label      string           `json:"label" doc:"Display label"`
	Score      float64          `json:"score" doc:"Cosine similarity"`
	Source     string           `json:"source" doc:"Source entry name"`
	Kind       types.SourceKind `json:"kind" doc:"Source kind"`
	URL        string           `json:"url" doc:"Servable image URL"`
}

// CatalogList is the REST representation of the full record set.
type CatalogList struct {
	Total   int             `json:"total" doc:"Number of records"`
	Records []CatalogRecord `json:"records"`
}

// CatalogRecord is the REST representation of one catalog record.
type CatalogRecord struct {
	Identifier string           `json:"identifier" doc:"Catalog identifier"`
	Label      string           `json:"label" doc:"Display label"`
	Source     string           `json:"source" doc:"Source entry name"`
	Kind       types.SourceKind `json:"kind" doc:"Source kind"`
	Embedded   bool             `json:"embedded" doc:"Whether a vector is cached"`
}

// StatusReport is the healthz payload.
type StatusReport struct {
	Status   string         `json:"status" example:"ok" doc:"ok or degraded"`
	Provider ProviderStatus `json:"provider"`
	Catalog  CatalogStatus  `json:"catalog"`
	Cache    CacheStatus    `json:"cache"`
}

// ProviderStatus reports the embedding provider's recent health.
type ProviderStatus struct {
	Model string `json:"model" doc:"Embedding model"`
	Mode  string `json:"mode" doc:"api or local"`
	health.Metrics
}

// CatalogStatus reports record counts.
type CatalogStatus struct {
	Records  int `json:"records" doc:"Total records"`
	Embedded int `json:"embedded" doc:"Records with a cached vector"`
}

// CacheStatus reports the embedding cache state.
type CacheStatus struct {
	Backend string `json:"backend" doc:"Cache backend name"`
	Entries int64  `json:"entries" doc:"Cached embeddings for the active model"`
}

// ImageURL returns the route path serving the image for an identifier.
// Identifiers may contain slashes; each segment is escaped individually.
func ImageURL(identifier string) string {
	u := url.URL{Path: "/images/" + identifier}
	return u.EscapedPath()
}
