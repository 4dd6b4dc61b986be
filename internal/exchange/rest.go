package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultUserAgent = "spreadwatch/1.0"

// RESTOptions parameterise the HTTP ticker sources.
type RESTOptions struct {
	Name      string
	Pair      CurrencyPair
	BaseURL   string
	Symbol    string
	Timeout   time.Duration
	UserAgent string
}

type restClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func newRESTClient(opts RESTOptions, fallbackURL string) restClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = fallbackURL
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}

	return restClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: ua,
	}
}

func (c restClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		if body := strings.TrimSpace(string(payload)); body != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, body)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
