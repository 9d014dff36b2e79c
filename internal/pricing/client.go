package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
)

var (
	ErrNotConfigured     = errors.New("pricing api base url is not configured")
	ErrUnexpectedStatus  = errors.New("unexpected http status")
	ErrMalformedResponse = errors.New("pricing response malformed")
	ErrInvalidPrice      = errors.New("price missing or not positive")
)

// maxResponseBytes caps how much of a pricing response is read.
const maxResponseBytes = 1 << 20

type resolveRequest struct {
	URL string `json:"url"`
}

type resolveResponse struct {
	ProductName  interface{} `json:"productName"`
	SellingPrice interface{} `json:"sellingPrice"`
	Price        interface{} `json:"price"`
}

// Client resolves decoded codes against the remote pricing API.
type Client struct {
	baseURL     string
	defaultName string
	http        *http.Client
}

func NewClient(baseURL, defaultName string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		defaultName: defaultName,
		http:        &http.Client{Timeout: timeout},
	}
}

func (c *Client) Resolve(ctx context.Context, decoded string) (*domain.ResolvedProduct, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	reqBody, err := json.Marshal(resolveRequest{URL: decoded})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resolve", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call pricing api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// The body is not inspected on failure statuses.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return c.parse(body)
}

func (c *Client) parse(body []byte) (*domain.ResolvedProduct, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data resolveResponse
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw := data.SellingPrice
	if raw == nil {
		raw = data.Price
	}
	cents, err := priceCents(raw)
	if err != nil {
		return nil, err
	}

	name, _ := data.ProductName.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.defaultName
	}

	return &domain.ResolvedProduct{ProductName: name, PriceCents: cents}, nil
}

func priceCents(raw interface{}) (int64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, raw)
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPrice, n)
	}
	cents := int64(math.Round(f))
	if cents <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPrice, n)
	}
	return cents, nil
}
