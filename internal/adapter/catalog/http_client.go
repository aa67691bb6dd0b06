package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"reply-orchestrator/internal/domain"
)

// HTTPClient reads the catalog backend over its internal REST API. The
// backend owns catalog metadata; this client never writes.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClient(baseURL string, timeout int, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}
	return &HTTPClient{
		BaseURL: baseURL,
		Client:  client,
	}
}

type catalogItemDTO struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Brand    string   `json:"brand"`
	Category string   `json:"category"`
	Price    float64  `json:"price"`
	Tags     []string `json:"tags"`
}

type listItemsResponse struct {
	Items []catalogItemDTO `json:"items"`
}

type contentItemDTO struct {
	ID           string   `json:"id"`
	BrandTags    []string `json:"brand_tags"`
	CategoryTags []string `json:"category_tags"`
	PriceMin     float64  `json:"price_min"`
	PriceMax     float64  `json:"price_max"`
	Tags         []string `json:"tags"`
}

func (c *HTTPClient) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v1/catalog/items", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindDependency, err, "catalog list request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.KindDependency,
			"catalog list returned status %d", resp.StatusCode)
	}

	var listResp listItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode catalog list response: %w", err)
	}

	items := make([]domain.CatalogItem, len(listResp.Items))
	for i, dto := range listResp.Items {
		items[i] = domain.CatalogItem{
			ID:       dto.ID,
			Title:    dto.Title,
			URL:      dto.URL,
			Brand:    dto.Brand,
			Category: dto.Category,
			Price:    dto.Price,
			Tags:     dto.Tags,
		}
	}
	return items, nil
}

func (c *HTTPClient) GetContentItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v1/content-items/%s", c.BaseURL, url.PathEscape(id)))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindDependency, err, "content item request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.KindDependency,
			"content item request returned status %d", resp.StatusCode)
	}

	var dto contentItemDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("failed to decode content item response: %w", err)
	}

	return &domain.ContentItem{
		ID:           dto.ID,
		BrandTags:    dto.BrandTags,
		CategoryTags: dto.CategoryTags,
		PriceMin:     dto.PriceMin,
		PriceMax:     dto.PriceMax,
		Tags:         dto.Tags,
	}, nil
}

var _ domain.CatalogClient = (*HTTPClient)(nil)
