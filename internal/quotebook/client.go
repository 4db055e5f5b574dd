package quotebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Fetched is the quote payload returned by the random quote endpoint.
type Fetched struct {
	Sentence string
	Author   *string
	Book     *string
	SourceID *string
}

// Client calls the random quote endpoint. A single attempt is made with a
// short timeout; callers treat any failure as "no quote available".
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) FetchForDate(ctx context.Context, date string) (*Fetched, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse quote api url: %w", err)
	}
	q := u.Query()
	q.Set("date", date)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch quote: unexpected status %d", resp.StatusCode)
	}

	var pick Pick
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&pick); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}

	sourceID := strconv.Itoa(pick.Index)
	return &Fetched{
		Sentence: pick.Sentence,
		Author:   pick.Author,
		Book:     pick.Book,
		SourceID: &sourceID,
	}, nil
}
