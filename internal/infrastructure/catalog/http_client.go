package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/flota-api/internal/domain/entity"
	"github.com/jhoicas/flota-api/internal/domain/repository"
)

var _ repository.WarehouseCatalog = (*HTTPClient)(nil)

// HTTPClient implementa el puerto WarehouseCatalog contra el endpoint REST
// del servicio de inventario. Usa net/http de la stdlib; no requiere
// librerías de terceros.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient construye el cliente. timeout acota la descarga completa.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// warehouseDoc forma del documento que expone el servicio de catálogo.
type warehouseDoc struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	StockTotal int    `json:"stock_total"`
}

// FetchAll descarga la lista completa de camionetas (sin paginación).
func (c *HTTPClient) FetchAll(ctx context.Context) ([]*entity.Warehouse, error) {
	url := c.baseURL + "/warehouses"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("crear request de catálogo: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("consultar catálogo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catálogo respondió %d", resp.StatusCode)
	}

	var docs []warehouseDoc
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decodificar catálogo: %w", err)
	}

	list := make([]*entity.Warehouse, 0, len(docs))
	for _, d := range docs {
		list = append(list, &entity.Warehouse{
			ID:         d.ID,
			Name:       d.Name,
			StockTotal: d.StockTotal,
		})
	}
	return list, nil
}
