package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"priceoptool/pkg/domain"
)

// TokenSource supplies the current access token for authenticated calls.
// An empty string means no session; the request goes out unauthenticated.
type TokenSource interface {
	AccessToken() string
}

// TokenFunc adapts a function to the TokenSource interface.
type TokenFunc func() string

func (f TokenFunc) AccessToken() string { return f() }

// Client calls the price-optimization backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// APIError represents a backend error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a backend client. tokens may be nil for a client
// that only performs unauthenticated calls.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

// Login exchanges credentials for a session record carrying access and
// refresh tokens plus profile fields.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	payload := map[string]string{"email": email, "password": password}
	var user domain.User
	if err := c.doJSON(ctx, http.MethodPost, "/accounts/login/", payload, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Register creates an account. The backend replies with an informational
// message (account activation is completed out of band).
func (c *Client) Register(ctx context.Context, email, username, password string, role domain.UserRole) (string, error) {
	payload := map[string]string{
		"email":    email,
		"username": username,
		"password": password,
		"role":     string(role),
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/accounts/register/", payload, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Logout revokes the given refresh token.
func (c *Client) Logout(ctx context.Context, refresh string) error {
	payload := map[string]string{"refresh": refresh}
	return c.doJSON(ctx, http.MethodPost, "/accounts/logout/", payload, nil)
}

// RefreshAccess exchanges a refresh token for a new access token.
func (c *Client) RefreshAccess(ctx context.Context, refresh string) (string, error) {
	payload := map[string]string{"refresh": refresh}
	var resp struct {
		Access string `json:"access"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/accounts/token/refresh/", payload, &resp); err != nil {
		return "", err
	}
	return resp.Access, nil
}

// ListProducts fetches the full catalog.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.doJSON(ctx, http.MethodGet, "/products/products/", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct submits a new product and returns the server record,
// which carries the assigned id.
func (c *Client) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	var created domain.Product
	if err := c.doJSON(ctx, http.MethodPost, "/products/products/", p, &created); err != nil {
		return domain.Product{}, err
	}
	return created, nil
}

// UpdateProduct replaces the product identified by p.ID.
func (c *Client) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	var updated domain.Product
	path := fmt.Sprintf("/products/products/%d/", p.ID)
	if err := c.doJSON(ctx, http.MethodPut, path, p, &updated); err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// DeleteProduct removes the product with the given id. The backend
// registers this route without a trailing slash.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/products/products/%d", id)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ListPricingOptimization fetches the read-only pricing view with
// computed optimized prices.
func (c *Client) ListPricingOptimization(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.doJSON(ctx, http.MethodGet, "/pricing/pricing-optimization/", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// DemandForecast fetches forecast rows for the given product ids.
func (c *Client) DemandForecast(ctx context.Context, ids []int64) ([]domain.ForecastRow, error) {
	payload := map[string][]int64{"ids": ids}
	var rows []domain.ForecastRow
	if err := c.doJSON(ctx, http.MethodPost, "/pricing/demand-forecast/", payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

// errorMessage pulls a human-readable message out of the backend's error
// body. The Django views are inconsistent about the field name.
func errorMessage(resp *http.Response) string {
	var errResp struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	for _, msg := range []string{errResp.Error, errResp.Detail, errResp.Message} {
		if strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return resp.Status
}
