// internal/clients/catalog_client.go
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// ErrItemNotFound means the catalog has no item with the requested id.
var ErrItemNotFound = errors.New("item not found")

// Item is the catalog's view of a lendable title. The reservation core only
// needs identity and metadata for error messages; the available count is
// owned by the inventory ledger.
type Item struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Publisher     string    `json:"publisher,omitempty"`
	TotalCopies   int       `json:"total_copies"`
	Available     int       `json:"available"`
}

// CatalogClient resolves items from the catalog service. Calls go through a
// circuit breaker so a struggling catalog does not pile up blocked
// reservation requests.
type CatalogClient struct {
	baseURL string
	breaker *gobreaker.CircuitBreaker
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "catalog",
		}),
	}
}

func (c *CatalogClient) Item(ctx context.Context, id uuid.UUID) (*Item, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getItem(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Item), nil
}

func (c *CatalogClient) getItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/items/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}

	return &item, nil
}
