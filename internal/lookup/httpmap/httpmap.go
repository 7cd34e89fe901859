// Package httpmap bridges lookups to an HTTP endpoint speaking JSON.
package httpmap

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/nsmapd/nsmapd/internal/lookup"
)

// Kind is the map kind served by this package.
const Kind = "http"

const defaultRequestTimeout = 5 * time.Second

// Config describes one HTTP-bridged map.
type Config struct {
	Name           string
	URL            string
	BearerToken    string
	RequestTimeout time.Duration
}

// Table forwards each lookup as a POST to the configured endpoint.
// Identical keys in flight share a single upstream request.
type Table struct {
	meta   lookup.MapMetadata
	url    string
	token  string
	client *http.Client
	group  singleflight.Group
}

func New(cfg Config) (*Table, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("httpmap: %s: endpoint url required", cfg.Name)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Table{
		meta: lookup.MapMetadata{
			Name:        cfg.Name,
			Kind:        Kind,
			Description: fmt.Sprintf("http bridge to %s", cfg.URL),
		},
		url:    cfg.URL,
		token:  cfg.BearerToken,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type wireRequest struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

type wireResponse struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (t *Table) Metadata() lookup.MapMetadata {
	return t.meta
}

func (t *Table) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err, _ := t.group.Do(key, func() (any, error) {
		res, err := t.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(wireResponse)
	return res.Value, res.Found, nil
}

func (t *Table) fetch(ctx context.Context, key string) (wireResponse, error) {
	body, err := json.Marshal(wireRequest{Name: t.meta.Name, Key: key})
	if err != nil {
		return wireResponse{}, fmt.Errorf("httpmap: %s: encode request: %w", t.meta.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return wireResponse{}, fmt.Errorf("httpmap: %s: %w", t.meta.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return wireResponse{}, fmt.Errorf("httpmap: %s: %w", t.meta.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wireResponse{}, fmt.Errorf("httpmap: %s: upstream status %d", t.meta.Name, resp.StatusCode)
	}

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wireResponse{}, fmt.Errorf("httpmap: %s: decode response: %w", t.meta.Name, err)
	}
	return out, nil
}

func (t *Table) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
