// Package giphy is the animated-image picker backend. It never fails its caller: a missing
// key disables it and any API error yields no results.
package giphy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"circle-chat/pkg/logger"
)

const DefaultBaseURL = "https://api.giphy.com/v1/gifs"

type Client struct {
	apiKey  string
	baseURL string
	limit   int
	http    *http.Client
	log     *logger.Logger
}

func NewClient(apiKey string, limit int, log *logger.Logger) *Client {
	if limit <= 0 {
		limit = 24
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		limit:   limit,
		http:    &http.Client{Timeout: 5 * time.Second},
		log:     log.Named("giphy"),
	}
}

// WithBaseURL points the client at another endpoint (tests, proxies).
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type searchResponse struct {
	Data []struct {
		Images struct {
			FixedHeight struct {
				URL string `json:"url"`
			} `json:"fixed_height"`
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

// Search returns candidate GIF URLs for query; trending results for an empty query.
func (c *Client) Search(ctx context.Context, query string) []string {
	if !c.Enabled() {
		return nil
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("rating", "g")

	endpoint := c.baseURL + "/trending"
	if q := strings.TrimSpace(query); q != "" {
		endpoint = c.baseURL + "/search"
		params.Set("q", q)
	}

	urls, err := c.fetch(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		c.log.Debugf("gif search %q failed: %v", query, err)
		return nil
	}
	return urls
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("giphy status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(body.Data))
	for _, item := range body.Data {
		u := item.Images.FixedHeight.URL
		if u == "" {
			u = item.Images.Original.URL
		}
		if u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}
