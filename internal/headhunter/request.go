package headhunter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	maxPages        = 20
)

var (
	ErrUnauthorized = errors.New("hh.ru rejected the access token")
	ErrNotFound     = errors.New("hh.ru object not found")
)

type itemResponse struct {
	Items   []map[string]any `json:"items"`
	Found   int              `json:"found"`
	Pages   int              `json:"pages"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// getItems makes GET requests to the API and returns the items from all pages.
func (c *Client) getItems(ctx context.Context, rawURL string, q url.Values) ([]map[string]any, error) {
	if q == nil {
		q = url.Values{}
	}

	var response itemResponse
	if err := c.getJSON(ctx, rawURL, q, &response); err != nil {
		return nil, err
	}

	c.logger.Debug("got response from HH.ru", zap.Int("pages", response.Pages), zap.Int("per_page", response.PerPage))

	items := response.Items
	for page := response.Page + 1; page < response.Pages && page < maxPages; page++ {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", page, response.Pages),
		))

		q.Set("page", strconv.Itoa(page))
		var next itemResponse
		if err := c.getJSON(ctx, rawURL, q, &next); err != nil {
			return nil, err
		}
		items = append(items, next.Items...)
	}

	return items, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	c.setHeaders(req)
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	default:
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(reader).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
}
