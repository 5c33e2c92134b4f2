package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caridad-cloud/allocation-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchDonationRecords(t *testing.T) {
	t.Run("resolves names and maps sellado case-insensitively", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/catalogo":
				w.Write([]byte(`[
					{"id_articulo": 1, "nombre_articulo": "Agua"},
					{"id_articulo": 2, "nombre_articulo": "Arroz"}
				]`))
			case "/donaciones-en-especie":
				w.Write([]byte(`[
					{"id_donacion_especie": 10, "id_articulo": 1, "id_almacen": 1, "cantidad_restante": 5, "estado_articulo": "Sellado"},
					{"id_donacion_especie": 11, "id_articulo": 2, "id_almacen": 2, "cantidad_restante": 3, "estado_articulo": "abierto"},
					{"id_donacion_especie": 12, "id_articulo": 99, "id_almacen": 1, "cantidad_restante": 7, "estado_articulo": "sellado"}
				]`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client(), zap.NewNop())
		records, err := client.FetchDonationRecords(context.Background())
		require.NoError(t, err)

		// Record 12 references an unknown catalog item and is dropped.
		require.Len(t, records, 2)
		assert.Equal(t, domain.DonationRecord{
			ID: 10, ItemName: "Agua", WarehouseID: 1,
			RemainingQuantity: 5, Policy: domain.PolicySealed,
		}, records[0])
		assert.Equal(t, domain.DonationRecord{
			ID: 11, ItemName: "Arroz", WarehouseID: 2,
			RemainingQuantity: 3, Policy: domain.PolicyPartial,
		}, records[1])
	})

	t.Run("upstream failure surfaces as ErrUpstream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client(), zap.NewNop())
		_, err := client.FetchDonationRecords(context.Background())
		assert.ErrorIs(t, err, ErrUpstream)
	})
}

func TestFetchWarehouses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/almacenes", r.URL.Path)
		w.Write([]byte(`[
			{"id_almacen": 1, "nombre_almacen": "Central"},
			{"id_almacen": 2, "nombre_almacen": "Norte"}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), zap.NewNop())
	warehouses, err := client.FetchWarehouses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Warehouse{
		{ID: 1, Name: "Central"},
		{ID: 2, Name: "Norte"},
	}, warehouses)
}

func TestCreatePackage(t *testing.T) {
	cmd := domain.PackageCommand{
		PackageName: "Paquete-42-A1",
		Description: "Paquete del pedido 42, almacen Central|ci:123|pedido:PED-42|almacen:1",
		RequestID:   42,
		WarehouseID: 1,
		Debits: []domain.Debit{
			{DonationRecordID: 10, Quantity: 3},
			{DonationRecordID: 11, Quantity: 1},
		},
	}

	t.Run("posts the legacy body shape", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/paquetes", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client(), zap.NewNop())
		require.NoError(t, client.CreatePackage(context.Background(), cmd))

		assert.Equal(t, "Paquete-42-A1", got["nombre_paquete"])
		// Descripcion goes out verbatim; the backend parses its tags.
		assert.Equal(t, cmd.Description, got["descripcion"])
		assert.Equal(t, float64(42), got["id_pedido"])

		donaciones := got["donaciones"].([]any)
		require.Len(t, donaciones, 2)
		first := donaciones[0].(map[string]any)
		assert.Equal(t, float64(10), first["id_donacion_especie"])
		assert.Equal(t, float64(3), first["cantidad_asignada"])
	})

	t.Run("rejection surfaces as ErrUpstream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client(), zap.NewNop())
		err := client.CreatePackage(context.Background(), cmd)
		assert.ErrorIs(t, err, ErrUpstream)
	})
}
