// Package inventory is the HTTP client for the legacy donation-records
// service. All Spanish wire names and the sellado policy string live here;
// the rest of the service only sees domain types.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/caridad-cloud/allocation-service/internal/domain"
	"go.uber.org/zap"
)

var (
	// ErrUpstream wraps any non-2xx answer from the donation-records service.
	ErrUpstream = errors.New("donation-records service error")
)

// sealed state marker used by the legacy backend, compared case-insensitively.
const estadoSellado = "sellado"

type donacionEspecie struct {
	ID               int    `json:"id_donacion_especie"`
	ArticuloID       int    `json:"id_articulo"`
	AlmacenID        int    `json:"id_almacen"`
	CantidadRestante int    `json:"cantidad_restante"`
	EstadoArticulo   string `json:"estado_articulo"`
}

type articulo struct {
	ID     int    `json:"id_articulo"`
	Nombre string `json:"nombre_articulo"`
}

type almacen struct {
	ID     int    `json:"id_almacen"`
	Nombre string `json:"nombre_almacen"`
}

type donacionAsignada struct {
	ID       int `json:"id_donacion_especie"`
	Cantidad int `json:"cantidad_asignada"`
}

type paqueteRequest struct {
	Nombre      string             `json:"nombre_paquete"`
	Descripcion string             `json:"descripcion"`
	PedidoID    int                `json:"id_pedido"`
	Donaciones  []donacionAsignada `json:"donaciones"`
}

// Client talks to the legacy donation-records REST API. Timeouts are whatever
// the injected http.Client carries; there is no retry or backoff here.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchDonationRecords returns the current in-kind donation snapshot with item
// names resolved through the catalog and the sealed/partial policy decided at
// this boundary. Record order is the service's own (ascending by record id).
func (c *Client) FetchDonationRecords(ctx context.Context) ([]domain.DonationRecord, error) {
	var catalog []articulo
	if err := c.getJSON(ctx, "/catalogo", &catalog); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	names := make(map[int]string, len(catalog))
	for _, art := range catalog {
		names[art.ID] = art.Nombre
	}

	var donaciones []donacionEspecie
	if err := c.getJSON(ctx, "/donaciones-en-especie", &donaciones); err != nil {
		return nil, fmt.Errorf("fetch donation records: %w", err)
	}

	records := make([]domain.DonationRecord, 0, len(donaciones))
	for _, d := range donaciones {
		name, ok := names[d.ArticuloID]
		if !ok {
			c.logger.Warn("Donation record references unknown catalog item",
				zap.Int("donation_id", d.ID),
				zap.Int("articulo_id", d.ArticuloID))
			continue
		}
		policy := domain.PolicyPartial
		if strings.EqualFold(d.EstadoArticulo, estadoSellado) {
			policy = domain.PolicySealed
		}
		records = append(records, domain.DonationRecord{
			ID:                d.ID,
			ItemName:          name,
			WarehouseID:       d.AlmacenID,
			RemainingQuantity: d.CantidadRestante,
			Policy:            policy,
		})
	}
	return records, nil
}

// FetchWarehouses returns the warehouse directory.
func (c *Client) FetchWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	var almacenes []almacen
	if err := c.getJSON(ctx, "/almacenes", &almacenes); err != nil {
		return nil, fmt.Errorf("fetch warehouses: %w", err)
	}
	warehouses := make([]domain.Warehouse, 0, len(almacenes))
	for _, a := range almacenes {
		warehouses = append(warehouses, domain.Warehouse{ID: a.ID, Name: a.Nombre})
	}
	return warehouses, nil
}

// CreatePackage submits one warehouse's package command. The descripcion
// string goes out verbatim; the backend parses its tags itself.
func (c *Client) CreatePackage(ctx context.Context, cmd domain.PackageCommand) error {
	body := paqueteRequest{
		Nombre:      cmd.PackageName,
		Descripcion: cmd.Description,
		PedidoID:    cmd.RequestID,
		Donaciones:  make([]donacionAsignada, 0, len(cmd.Debits)),
	}
	for _, d := range cmd.Debits {
		body.Donaciones = append(body.Donaciones, donacionAsignada{
			ID:       d.DonationRecordID,
			Cantidad: d.Quantity,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal package request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/paquetes", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create package: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("create package for warehouse %d: status %d: %w",
			cmd.WarehouseID, resp.StatusCode, ErrUpstream)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %w", path, resp.StatusCode, ErrUpstream)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
