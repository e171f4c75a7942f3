package client

import (
	"context"
	"net/url"
)

// Parse annotates req.Text on the server.
func (c *Client) Parse(ctx context.Context, req ParseRequest) (*ParseResponse, error) {
	var resp ParseResponse
	if err := c.post(ctx, "/api/v1/parse", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Extract runs rule-free candidate extraction on text.
func (c *Client) Extract(ctx context.Context, text string) ([]Candidate, error) {
	var resp struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := c.post(ctx, "/api/v1/extract", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

// Projects lists the project ids with a cached parser on the server.
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var resp struct {
		Projects []string `json:"projects"`
	}
	if err := c.get(ctx, "/api/v1/projects", &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// InvalidateProject drops the server's cached parser for project.
func (c *Client) InvalidateProject(ctx context.Context, project string) error {
	return c.delete(ctx, "/api/v1/projects/"+url.PathEscape(project)+"/cache", nil)
}

// PurgeDirectoryCache empties the server's directory lookup cache and
// returns the number of keys removed.  Servers without redis answer 404.
func (c *Client) PurgeDirectoryCache(ctx context.Context) (int64, error) {
	var resp struct {
		Purged int64 `json:"purged"`
	}
	if err := c.delete(ctx, "/api/v1/directory/cache", &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

// Healthz calls the liveness probe.
func (c *Client) Healthz(ctx context.Context) (*Liveness, error) {
	var resp Liveness
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Readyz calls the readiness probe.  A not-ready server returns an
// *APIError with status 503.
func (c *Client) Readyz(ctx context.Context) (*Readiness, error) {
	var resp Readiness
	if err := c.get(ctx, "/readyz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
