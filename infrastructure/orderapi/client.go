// Package orderapi is the handheld-side order store: the same surface the
// server store exposes, projected over the JSON API and the SSE event
// stream. The handheld keeps a local snapshot and treats every received
// event as the new truth.
package orderapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"pickflow/models"
)

// ErrOrderNotFound is returned for writes against an order the server no
// longer has.
var ErrOrderNotFound = errors.New("order not found on server")

const reconnectBackoff = 2 * time.Second

// Client talks to a pickflow server.
type Client struct {
	baseURL string
	actor   string
	httpc   *http.Client
	logger  *slog.Logger

	mu       sync.Mutex
	snapshot []models.Order
	subs     map[int64]func(orders []models.Order)
	nextSub  int64
}

// NewClient builds a client for the given server. The actor name is sent
// with every request and ends up in the server's audit trail.
func NewClient(baseURL, actor string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		actor:   actor,
		httpc:   &http.Client{},
		logger:  logger,
		subs:    make(map[int64]func(orders []models.Order)),
	}
}

// Run consumes the server's event stream until ctx is cancelled,
// reconnecting with a fixed backoff. Each received snapshot replaces the
// local one and is fanned out to subscribers.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.stream(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("event stream dropped, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Actor", c.actor)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var orders []models.Order
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &orders); err != nil {
			c.logger.Warn("bad event payload", "error", err)
			continue
		}
		c.applySnapshot(orders)
	}
	return scanner.Err()
}

func (c *Client) applySnapshot(orders []models.Order) {
	c.mu.Lock()
	c.snapshot = orders
	fns := make([]func(orders []models.Order), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(cloneOrders(orders))
	}
}

// Subscribe registers a snapshot callback and immediately delivers the
// current set. The returned function cancels the subscription.
func (c *Client) Subscribe(fn func(orders []models.Order)) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	current := cloneOrders(c.snapshot)
	c.mu.Unlock()

	fn(current)
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Orders returns a copy of the current snapshot.
func (c *Client) Orders() []models.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneOrders(c.snapshot)
}

// Get returns one order from the snapshot.
func (c *Client) Get(id string) (models.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.snapshot {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return models.Order{}, false
}

// Create sends a new order to the server and returns its assigned id.
func (c *Client) Create(ctx context.Context, order models.Order) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/orders", order)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", responseError("create order", resp)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}
	return created.ID, nil
}

// Update pushes a whole order.
func (c *Client) Update(ctx context.Context, order models.Order) error {
	resp, err := c.send(ctx, http.MethodPut, "/api/orders/"+order.ID, order)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrOrderNotFound
	default:
		return responseError("update order", resp)
	}
}

// UpdateStatus pushes an order status change.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) error {
	resp, err := c.send(ctx, http.MethodPut, "/api/orders/"+id+"/status", map[string]string{"status": status})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrOrderNotFound
	default:
		return responseError("update order status", resp)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", c.actor)
	return c.httpc.Do(req)
}

func responseError(action string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: server said %d: %s", action, resp.StatusCode, strings.TrimSpace(string(msg)))
}

func cloneOrders(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
