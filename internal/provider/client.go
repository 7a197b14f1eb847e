// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package provider

import (
	"context"
	"errors"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// Compile-time interface check.
var _ Embedder = (*Client)(nil)

// Client implements Embedder against an OpenAI-compatible embeddings
// endpoint. Requests are never retried by the SDK; the caller decides
// whether and when to try again.
type Client struct {
	sdk    openaisdk.Client
	config Config
	health *HealthTracker
}

func newClient(cfg Config) (*Client, error) {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	tracker, err := NewHealthTracker(DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	return &Client{
		sdk:    openaisdk.NewClient(opts...),
		config: cfg,
		health: tracker,
	}, nil
}

func (c *Client) Model() string   { return c.config.Model }
func (c *Client) Dimensions() int { return c.config.Dimensions }

// Health exposes the client's availability tracker.
func (c *Client) Health() *HealthTracker { return c.health }

// Embed requests one vector per input text. The response is validated
// before anything is returned: a count mismatch or an unexpected vector
// width is a malformed response, not a partial success.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          openaisdk.EmbeddingModel(c.config.Model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		mapped := c.mapError(err)
		c.health.RecordFailure(mapped)
		return nil, mapped
	}

	vectors, err := c.convertResponse(resp, len(texts))
	if err != nil {
		c.health.RecordFailure(err)
		return nil, err
	}

	c.health.RecordSuccess(time.Since(start))
	return vectors, nil
}

// convertResponse reorders by the response's index field and narrows to
// float32.
func (c *Client) convertResponse(resp *openaisdk.CreateEmbeddingResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Data) != want {
		got := 0
		if resp != nil {
			got = len(resp.Data)
		}
		return nil, memexerr.Errorf(memexerr.CodeProviderMalformed,
			"embedding count mismatch: requested %d, got %d", want, got)
	}

	vectors := make([][]float32, want)
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= int64(want) {
			return nil, memexerr.Errorf(memexerr.CodeProviderMalformed,
				"embedding index %d out of range [0, %d)", item.Index, want)
		}
		if len(item.Embedding) == 0 {
			return nil, memexerr.Errorf(memexerr.CodeProviderMalformed,
				"empty embedding at index %d", item.Index)
		}
		if c.config.Dimensions > 0 && len(item.Embedding) != c.config.Dimensions {
			return nil, memexerr.Errorf(memexerr.CodeProviderMalformed,
				"embedding at index %d has %d dimensions, want %d",
				item.Index, len(item.Embedding), c.config.Dimensions)
		}

		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[item.Index] = vec
	}

	for i, vec := range vectors {
		if vec == nil {
			return nil, memexerr.Errorf(memexerr.CodeProviderMalformed,
				"missing embedding for input %d", i)
		}
	}

	return vectors, nil
}

// mapError classifies SDK and transport failures into provider error codes.
func (c *Client) mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return memexerr.Wrap(err, memexerr.CodeProviderTimeout,
			"embedding request timed out", memexerr.FieldModel(c.config.Model))
	}
	if errors.Is(err, context.Canceled) {
		return memexerr.Wrap(err, memexerr.CodeProviderTimeout,
			"embedding request canceled", memexerr.FieldModel(c.config.Model))
	}

	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return memexerr.Wrap(err, memexerr.CodeProviderUnauthorized,
				"embedding endpoint rejected credentials", memexerr.FieldModel(c.config.Model))
		case apierr.StatusCode == 429:
			return memexerr.Wrap(err, memexerr.CodeProviderRateLimited,
				"embedding endpoint rate limited", memexerr.FieldModel(c.config.Model))
		case apierr.StatusCode >= 500:
			return memexerr.Wrap(err, memexerr.CodeProviderUnreachable,
				"embedding endpoint failed", memexerr.FieldModel(c.config.Model))
		default:
			return memexerr.Wrap(err, memexerr.CodeProviderMalformed,
				"embedding endpoint rejected request", memexerr.FieldModel(c.config.Model))
		}
	}

	return memexerr.Wrap(err, memexerr.CodeProviderUnreachable,
		"embedding endpoint unreachable", memexerr.FieldModel(c.config.Model))
}

func (c *Client) Close() error { return nil }
