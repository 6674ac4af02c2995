package wbapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{baseURL: srv.URL, httpClient: srv.Client()}
}

func TestPingAcceptsValidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		assert.Equal(t, "valid-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok, err := testClient(srv).Ping(context.Background(), "valid-key")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
}

func TestPingRejectsInvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ok, err := testClient(srv).Ping(context.Background(), "bad-key")
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)
}

func TestWarehousesParsesDirectory(t *testing.T) {
	payload := []map[string]interface{}{
		{"ID": 507, "name": "Коледино"},
		{"ID": 686, "name": "Новосибирск"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/warehouses", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	warehouses, err := testClient(srv).Warehouses(context.Background(), "key")
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(warehouses))
	assert.Equal(t, int64(507), warehouses[0].ID)
	assert.Equal(t, "Коледино", warehouses[0].Name)
}

func TestWarehousesMapsRejectionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv).Warehouses(context.Background(), "key")
	statusErr, ok := err.(*StatusError)
	assert.Equal(t, true, ok)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.Equal(t, "Ошибка: Слишком много запросов. Попробуйте позже.", statusErr.Message)
}

func TestCoefficientsSendsIDsAndParses(t *testing.T) {
	payload := []map[string]interface{}{
		{"warehouseID": 507, "warehouseName": "Коледино", "coefficient": 0, "boxTypeName": "Короба", "date": "2026-08-30T00:00:00Z"},
		{"warehouseID": 686, "warehouseName": "Новосибирск", "coefficient": -1, "boxTypeName": "Монопаллеты", "date": "2026-08-30T00:00:00Z"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/acceptance/coefficients", r.URL.Path)
		assert.Equal(t, "507,686", r.URL.Query().Get("warehouseIDs"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	coefficients, err := testClient(srv).Coefficients(context.Background(), "key", []int64{507, 686})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(coefficients))
	assert.Equal(t, 0.0, coefficients[0].Value)
	assert.Equal(t, -1.0, coefficients[1].Value)
	assert.Equal(t, "Короба", coefficients[0].BoxTypeName)
}

func TestStatusMessageUnknownCodeIsOK(t *testing.T) {
	assert.Equal(t, "OK", StatusMessage(http.StatusOK))
	assert.Equal(t, "OK", StatusMessage(http.StatusTeapot))
}
