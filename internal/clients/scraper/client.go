package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"golang.org/x/time/rate"
	"io"
	"net/http"
	"strings"
	"time"
)

type fetchAdsResponse struct {
	Items []models.RawAd `json:"items"`
}

type fetchBrandsResponse struct {
	Brands []string `json:"brands"`
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to an external scraping service of one platform. The service
// owns the site specific parsing and returns listings as loose JSON objects.
type Client struct {
	platform    models.Platform
	baseURL     string
	httpClient  HTTPClient
	rateLimiter *rate.Limiter
	timeout     time.Duration
}

func NewClient(platform models.Platform, baseURL string) *Client {
	return &Client{
		platform:   platform,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

func (c *Client) SetRateLimit(maxRequestsPerSecond float32) {
	if maxRequestsPerSecond <= 0 {
		c.rateLimiter = nil
		return
	}
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

// SetTimeout bounds a single request including the wait for the rate limiter.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *Client) FetchAds(ctx context.Context, params models.Params) ([]models.RawAd, error) {

	query, err := ToURLValues(params)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	apiURL := c.baseURL + "/ads"
	if encoded := query.Encode(); encoded != "" {
		apiURL += "?" + encoded
	}

	body, err := c.sendRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	var adsResponse fetchAdsResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&adsResponse); err != nil {
		return nil, fmt.Errorf("error decoding JSON response: %w", err)
	}

	return adsResponse.Items, nil
}

func (c *Client) FetchBrands(ctx context.Context) ([]string, error) {

	body, err := c.sendRequest(ctx, http.MethodGet, c.baseURL+"/brands", nil)
	if err != nil {
		return nil, err
	}

	var brandsResponse fetchBrandsResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&brandsResponse); err != nil {
		return nil, fmt.Errorf("error decoding JSON response: %w", err)
	}

	return brandsResponse.Brands, nil
}

func (c *Client) sendRequest(ctx context.Context, method string, url string, body io.Reader) ([]byte, error) {

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request to %s scraper: %w", c.platform, err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %v, body: %v", resp.StatusCode, string(body))
	}

	return body, nil
}
