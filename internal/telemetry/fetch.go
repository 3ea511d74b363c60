package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/danmuck/ampm/internal/observability"
)

const maxConfigBytes = 4 << 20

var (
	ErrConfigStatus   = errors.New("telemetry: config fetch status")
	ErrConfigTooLarge = errors.New("telemetry: config document too large")
)

// Document is a decoded configuration document.
type Document map[string]any

// Lookup walks nested objects by key.
func (d Document) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(d)
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// ConfigResult tags a fetch so callers can tell an empty document from a
// failed fetch. Document is never nil.
type ConfigResult struct {
	Document Document
	Err      error
}

func (r ConfigResult) OK() bool {
	return r.Err == nil
}

// GetConfig fetches and decodes the configuration document with a blocking
// GET. Failures are logged through Log and masked by an empty document.
func (c *Client) GetConfig(ctx context.Context) ConfigResult {
	doc, err := c.fetchConfig(ctx)
	observability.RecordConfigFetch(err == nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.cfg.ConfigURL).Msg("telemetry config fetch failed")
		c.logCaller(1, SeverityInfo, err.Error())
		return ConfigResult{Document: Document{}, Err: err}
	}
	return ConfigResult{Document: doc}
}

// FetchConfig is GetConfig without the failure tag.
func (c *Client) FetchConfig(ctx context.Context) Document {
	return c.GetConfig(ctx).Document
}

func (c *Client) fetchConfig(ctx context.Context) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ConfigURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrConfigStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxConfigBytes {
		return nil, ErrConfigTooLarge
	}
	doc := Document{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("telemetry: parse config: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
