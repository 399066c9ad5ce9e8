// Package catalog talks to the Iceberg REST catalog (Lakekeeper) that the
// DuckDB session attaches.
//
// RestClient covers the read-only listing calls used by the CLI, including
// Lakekeeper's management API for warehouses. IcebergCatalog wraps
// apache/iceberg-go for namespace and table management.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// namespaceSeparator joins multi-level namespaces in REST paths.
const namespaceSeparator = "\x1F"

// RestConfig configures the REST client.
type RestConfig struct {
	// CatalogURI is the Iceberg REST base URL, e.g. http://localhost:8181/catalog.
	CatalogURI string

	// ManagementURI is Lakekeeper's management base URL, e.g.
	// http://localhost:8181/management. Only ListWarehouses needs it.
	ManagementURI string

	// Warehouse is sent to /v1/config to resolve the path prefix.
	Warehouse string

	// Token is sent as a bearer token when set.
	Token string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout bounds each request. Defaults to 30 seconds.
	RequestTimeout time.Duration
}

// CatalogConfig is the response of GET /v1/config.
type CatalogConfig struct {
	Defaults  map[string]string `json:"defaults"`
	Overrides map[string]string `json:"overrides"`
}

// Prefix returns the path prefix the server assigned to the warehouse.
func (c CatalogConfig) Prefix() string {
	if p := c.Overrides["prefix"]; p != "" {
		return p
	}
	return c.Defaults["prefix"]
}

// Warehouse is one entry of Lakekeeper's warehouse listing.
type Warehouse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project-id"`
	Status    string `json:"status"`
}

// TableIdent names a table or view inside a namespace.
type TableIdent struct {
	Namespace []string `json:"namespace"`
	Name      string   `json:"name"`
}

func (t TableIdent) String() string {
	return strings.Join(append(append([]string{}, t.Namespace...), t.Name), ".")
}

// RestClient is a minimal Iceberg REST catalog client.
type RestClient struct {
	config     RestConfig
	httpClient *http.Client
	catalogURL string
	mgmtURL    string

	prefixMu sync.Mutex
	prefix   *string
}

// NewRestClient creates a REST client.
func NewRestClient(config RestConfig) (*RestClient, error) {
	if config.CatalogURI == "" {
		return nil, errors.New("catalog URI is required")
	}

	// Copy so the timeout never leaks into a shared client.
	client := &http.Client{}
	if config.HTTPClient != nil {
		c := *config.HTTPClient
		client = &c
	}
	if config.RequestTimeout > 0 {
		client.Timeout = config.RequestTimeout
	} else if client.Timeout == 0 {
		client.Timeout = 30 * time.Second
	}

	return &RestClient{
		config:     config,
		httpClient: client,
		catalogURL: normalizeBaseURL(config.CatalogURI),
		mgmtURL:    normalizeBaseURL(config.ManagementURI),
	}, nil
}

func normalizeBaseURL(u string) string {
	if u == "" {
		return ""
	}
	u = strings.TrimSuffix(u, "/")
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return u
}

// Config fetches the catalog configuration for the configured warehouse.
func (c *RestClient) Config(ctx context.Context) (CatalogConfig, error) {
	q := url.Values{}
	if c.config.Warehouse != "" {
		q.Set("warehouse", c.config.Warehouse)
	}
	var cfg CatalogConfig
	if err := c.do(ctx, c.catalogURL+"/v1/config", q, &cfg); err != nil {
		return CatalogConfig{}, err
	}
	return cfg, nil
}

// resolvePrefix returns the warehouse prefix, fetching it once.
func (c *RestClient) resolvePrefix(ctx context.Context) (string, error) {
	c.prefixMu.Lock()
	defer c.prefixMu.Unlock()
	if c.prefix != nil {
		return *c.prefix, nil
	}
	cfg, err := c.Config(ctx)
	if err != nil {
		return "", err
	}
	p := cfg.Prefix()
	c.prefix = &p
	return p, nil
}

func (c *RestClient) catalogPath(ctx context.Context, parts ...string) (string, error) {
	prefix, err := c.resolvePrefix(ctx)
	if err != nil {
		return "", err
	}
	path := c.catalogURL + "/v1"
	if prefix != "" {
		path += "/" + url.PathEscape(strings.Trim(prefix, "/"))
	}
	for _, p := range parts {
		path += "/" + url.PathEscape(p)
	}
	return path, nil
}

// ListWarehouses lists warehouses through Lakekeeper's management API.
func (c *RestClient) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	if c.mgmtURL == "" {
		return nil, errors.New("catalog: management URI is required to list warehouses")
	}
	var resp struct {
		Warehouses []Warehouse `json:"warehouses"`
	}
	if err := c.do(ctx, c.mgmtURL+"/v1/warehouse", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Warehouses, nil
}

// ListNamespaces lists all top-level namespaces, following page tokens.
func (c *RestClient) ListNamespaces(ctx context.Context) ([][]string, error) {
	path, err := c.catalogPath(ctx, "namespaces")
	if err != nil {
		return nil, err
	}

	var result [][]string
	token := ""
	for {
		var resp struct {
			Namespaces    [][]string `json:"namespaces"`
			NextPageToken string     `json:"next-page-token"`
		}
		if err := c.do(ctx, path, pageQuery(token), &resp); err != nil {
			return nil, err
		}
		result = append(result, resp.Namespaces...)
		if resp.NextPageToken == "" {
			return result, nil
		}
		token = resp.NextPageToken
	}
}

// ListTables lists the tables in a namespace.
func (c *RestClient) ListTables(ctx context.Context, namespace []string) ([]TableIdent, error) {
	return c.listIdentifiers(ctx, namespace, "tables")
}

// ListViews lists the Iceberg views in a namespace.
func (c *RestClient) ListViews(ctx context.Context, namespace []string) ([]TableIdent, error) {
	return c.listIdentifiers(ctx, namespace, "views")
}

func (c *RestClient) listIdentifiers(ctx context.Context, namespace []string, kind string) ([]TableIdent, error) {
	if len(namespace) == 0 {
		return nil, errors.New("catalog: namespace is required")
	}
	path, err := c.catalogPath(ctx, "namespaces", strings.Join(namespace, namespaceSeparator), kind)
	if err != nil {
		return nil, err
	}

	var result []TableIdent
	token := ""
	for {
		var resp struct {
			Identifiers   []TableIdent `json:"identifiers"`
			NextPageToken string       `json:"next-page-token"`
		}
		if err := c.do(ctx, path, pageQuery(token), &resp); err != nil {
			return nil, err
		}
		result = append(result, resp.Identifiers...)
		if resp.NextPageToken == "" {
			return result, nil
		}
		token = resp.NextPageToken
	}
}

func pageQuery(token string) url.Values {
	if token == "" {
		return nil
	}
	return url.Values{"pageToken": {token}}
}

// do executes a GET request and decodes the JSON response into result.
func (c *RestClient) do(ctx context.Context, u string, query url.Values, result any) error {
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, body)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// parseErrorResponse decodes the Iceberg REST error model.
func parseErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &errResp)

	msg := errResp.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return &APIError{StatusCode: statusCode, Type: errResp.Error.Type, Message: msg}
}
