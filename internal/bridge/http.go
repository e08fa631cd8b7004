package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"airguard/internal/model"
)

// HTTPBridge talks to the microcontroller RPC bridge. Each call is a POST to
// {addr}/call/{method} with a JSON body {"args": [...]}; the response body is
// the method result.
type HTTPBridge struct {
	addr   string
	client *http.Client
}

func NewHTTPBridge(addr string, timeout time.Duration) *HTTPBridge {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPBridge{
		addr:   strings.TrimRight(addr, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBridge) Fetch(ctx context.Context) (*model.Sample, error) {
	body, err := b.call(ctx, "getAll")
	if err != nil {
		return nil, err
	}
	return DecodeSample(body)
}

func (b *HTTPBridge) SetDisplay(ctx context.Context, code string) error {
	_, err := b.call(ctx, "setFace", code)
	return err
}

func (b *HTTPBridge) call(ctx context.Context, method string, args ...string) ([]byte, error) {
	if args == nil {
		args = []string{}
	}
	payload, err := json.Marshal(map[string]any{"args": args})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.addr+"/call/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: %w", method, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("bridge %s: read: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bridge %s: status %d", method, resp.StatusCode)
	}
	return data, nil
}
