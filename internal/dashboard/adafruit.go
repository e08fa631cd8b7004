package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Feed keys on the Adafruit IO dashboard.
const (
	FeedTemperature = "temp"
	FeedVOC         = "voc"
	FeedStatus      = "ai-status"
)

// Adafruit posts each value to its own feed. One failing feed does not stop
// the others.
type Adafruit struct {
	baseURL  string
	username string
	key      string
	client   *http.Client
}

func NewAdafruit(baseURL, username, key string, timeout time.Duration) *Adafruit {
	return &Adafruit{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		key:      key,
		client:   &http.Client{Timeout: timeout},
	}
}

func (a *Adafruit) Push(ctx context.Context, u Update) error {
	var errs []error
	for _, kv := range []struct {
		feed  string
		value any
	}{
		{FeedTemperature, u.TemperatureC},
		{FeedVOC, u.VOC},
		{FeedStatus, u.Status},
	} {
		if err := a.send(ctx, kv.feed, kv.value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Adafruit) send(ctx context.Context, feed string, value any) error {
	payload, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/feeds/%s/data", a.baseURL, a.username, feed)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-AIO-Key", a.key)
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("feed %s: %w", feed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("feed %s: status %d", feed, resp.StatusCode)
	}
	return nil
}
