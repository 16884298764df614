package searchengine

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	opensearchapi "github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

// Client wraps the OpenSearch client for the operations this platform needs:
// bulk indexing, querying, and index lifecycle management.
type Client struct {
	raw   *opensearch.Client
	index string
}

// Config configures a Client's connection to the engine cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// New dials the OpenSearch cluster named by Config.
func New(cfg Config) (*Client, error) {
	addresses := cfg.Addresses
	if len(addresses) == 1 && strings.Contains(addresses[0], ",") {
		addresses = strings.Split(addresses[0], ",")
	}

	raw, err := opensearch.NewClient(opensearch.Config{
		Addresses: addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
		},
	})
	if err != nil {
		return nil, apperrors.EngineError("create opensearch client", err)
	}

	return &Client{raw: raw, index: cfg.Index}, nil
}

// IndexName returns the configured index name.
func (c *Client) IndexName() string { return c.index }

// Raw exposes the underlying opensearch-go client for callers that need
// lower-level APIs not wrapped here, such as index lifecycle management.
func (c *Client) Raw() *opensearch.Client { return c.raw }

// Search executes a raw query body against the configured index.
func (c *Client) Search(ctx context.Context, body io.Reader) (*opensearchapi.Response, error) {
	req := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  body,
	}
	resp, err := req.Do(ctx, c.raw)
	if err != nil {
		return nil, apperrors.EngineError("execute search", err)
	}
	if resp.IsError() {
		defer resp.Body.Close()
		return nil, apperrors.New(apperrors.ErrCodeEngineBadQuery, "search engine returned an error status: "+resp.Status(), nil)
	}
	return resp, nil
}

// Health reports the cluster health status ("green"/"yellow"/"red").
func (c *Client) Health(ctx context.Context) (string, error) {
	resp, err := c.raw.Cluster.Health(c.raw.Cluster.Health.WithContext(ctx))
	if err != nil {
		return "", apperrors.EngineError("cluster health", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return "", apperrors.New(apperrors.ErrCodeEngineUnavailable, "cluster health check failed: "+resp.Status(), nil)
	}
	var decoded struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperrors.EngineError("decode cluster health", err)
	}
	return decoded.Status, nil
}
