package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// sharedFetchTimeout bounds a collapsed product list fetch when the HTTP client has no timeout.
const sharedFetchTimeout = 30 * time.Second

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Client talks to the remote storefront API. Every response wraps its payload
// in a {"data": ...} envelope.
type Client struct {
	baseURL    string
	userID     int64
	httpClient *http.Client
	sfg        singleflight.Group // collapses concurrent product list fetches
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type createOrderRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	UserID          int64  `json:"userId"`
}

// NewClient builds a client for baseURL (e.g. http://localhost:5000/api).
// A zero timeout leaves the transport default in place.
func NewClient(baseURL string, userID int64, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, userID, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	})
}

func NewClientWithHTTP(baseURL string, userID int64, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: httpClient,
	}
}

// ListProducts shares one in-flight fetch between concurrent callers. The fetch is
// detached from any single caller's cancellation; each caller still stops waiting
// when its own context ends.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ch := c.sfg.DoChan("products", func() (interface{}, error) {
		timeout := c.httpClient.Timeout
		if timeout <= 0 {
			timeout = sharedFetchTimeout
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return getJSON[[]domain.Product](fetchCtx, c, "/products")
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	products := res.Val.([]domain.Product)
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := getJSON[*domain.Product](ctx, c, "/products/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// CreateOrder makes a single attempt to create an order for the configured user.
// Transport, status and decode failures are all returned as errors.
func (c *Client) CreateOrder(ctx context.Context, shippingAddress string) (*domain.RemoteOrder, error) {
	body, err := json.Marshal(createOrderRequest{ShippingAddress: shippingAddress, UserID: c.userID})
	if err != nil {
		return nil, fmt.Errorf("marshal order request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var env envelope[*domain.RemoteOrder]
	if err := c.do(req, &env); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if env.Data == nil {
		return &domain.RemoteOrder{}, nil
	}
	return env.Data, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.RemoteOrder, error) {
	return getJSON[[]domain.RemoteOrder](ctx, c, "/orders/user/"+strconv.FormatInt(c.userID, 10))
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.RemoteOrder, error) {
	o, err := getJSON[*domain.RemoteOrder](ctx, c, "/orders/"+url.PathEscape(orderID))
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return o, nil
}

func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	var env envelope[T]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return env.Data, fmt.Errorf("build request failed: %w", err)
	}
	if err := c.do(req, &env); err != nil {
		return env.Data, fmt.Errorf("GET %s: %w", path, err)
	}
	return env.Data, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}
