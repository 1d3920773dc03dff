package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketscraper/config"
	"marketscraper/logger"
	"marketscraper/models"
)

const maxBodyBytes = 5 << 20

// Reader polls JSON news endpoints. Each endpoint fails independently.
type Reader struct {
	endpoints  []string
	itemsField string
	maxItems   int
	client     *http.Client
	log        *logger.Log
}

func NewReader(cfg config.NewsConfig) *Reader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reader{
		endpoints:  append([]string(nil), cfg.Endpoints...),
		itemsField: cfg.ItemsField,
		maxItems:   cfg.MaxItems,
		client:     &http.Client{Timeout: timeout},
		log:        logger.GetLogger(),
	}
}

// Fetch queries every endpoint in order and returns the items of those that
// answered. The returned error joins the failures of individual endpoints and
// may be non-nil alongside a non-empty result.
func (r *Reader) Fetch(ctx context.Context) ([]models.RawNewsItem, error) {
	var (
		items []models.RawNewsItem
		errs  []error
	)
	for _, endpoint := range r.endpoints {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		log := r.log.WithComponent("news_reader").WithFields(logger.Fields{"endpoint": endpoint})

		start := time.Now()
		got, err := r.fetchEndpoint(ctx, endpoint)
		if err != nil {
			log.WithError(err).Warn("news endpoint failed")
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}
		logger.LogPerformanceEntry(log, "news_reader", "fetch_endpoint", time.Since(start), logger.Fields{"items": len(got)})
		logger.LogDataFlowEntry(log, endpoint, "news_processor", len(got), "news_items")
		items = append(items, got...)
	}
	return items, errors.Join(errs...)
}

func (r *Reader) fetchEndpoint(ctx context.Context, endpoint string) ([]models.RawNewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return r.decode(endpoint, body)
}

type rawItem struct {
	ID        json.RawMessage `json:"id"`
	Title     string          `json:"title"`
	NewsSite  string          `json:"news_site"`
	Source    string          `json:"source"`
	URL       string          `json:"url"`
	UpdatedAt json.RawMessage `json:"updated_at"`
}

// decode extracts the item list at itemsField. A payload without that field
// yields no items; a body that is not JSON is an error.
func (r *Reader) decode(endpoint string, body []byte) ([]models.RawNewsItem, error) {
	list := json.RawMessage(body)
	if r.itemsField != "" {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		field, ok := payload[r.itemsField]
		if !ok {
			return nil, nil
		}
		list = field
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(list, &raws); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	items := make([]models.RawNewsItem, 0, len(raws))
	for _, raw := range raws {
		if r.maxItems > 0 && len(items) >= r.maxItems {
			break
		}
		var it rawItem
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		source := it.NewsSite
		if source == "" {
			source = it.Source
		}
		items = append(items, models.RawNewsItem{
			ID:        scalarString(it.ID),
			Title:     strings.TrimSpace(it.Title),
			Source:    source,
			URL:       it.URL,
			UpdatedAt: parseTimestamp(it.UpdatedAt),
			Endpoint:  endpoint,
		})
	}
	return items, nil
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// parseTimestamp accepts RFC 3339 strings and epoch seconds or milliseconds,
// either as numbers or numeric strings.
func parseTimestamp(raw json.RawMessage) time.Time {
	s := scalarString(raw)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		if f > 1e12 {
			return time.UnixMilli(int64(f)).UTC()
		}
		return time.Unix(int64(f), 0).UTC()
	}
	return time.Time{}
}
