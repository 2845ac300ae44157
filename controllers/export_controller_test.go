package controllers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/models"
	"github.com/iara-orders/orders-api/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupExportRouter() *gin.Engine {
	router := setupTestRouter()
	router.GET("/export/orders/json", ExportOrdersJSON)
	router.GET("/export/orders/sql", ExportOrdersSQL)
	router.POST("/import/orders/json", ImportOrdersJSON)
	router.POST("/export/orders/archive", ArchiveOrders)
	return router
}

func seedOneOrder(t *testing.T, orders services.OrderService) {
	t.Helper()
	_, err := orders.CreateOrderWithItems(context.Background(), 101, models.NewDate(2025, 8, 10), []services.ItemSpec{
		{ProductID: 501, Quantity: 2, UnitPrice: decimal.RequireFromString("10.50")},
	})
	require.NoError(t, err)
}

func TestExportOrdersJSON(t *testing.T) {
	orders, _ := setupTestServices(t)
	seedOneOrder(t, orders)

	w := doJSON(setupExportRouter(), http.MethodGet, "/export/orders/json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total_orders"])
	entries := data["data"].([]interface{})
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]interface{})
	assert.Equal(t, float64(21), entry["order"].(map[string]interface{})["total_amount"])
	assert.Len(t, entry["items"], 1)
}

func TestExportOrdersSQL(t *testing.T) {
	orders, _ := setupTestServices(t)
	seedOneOrder(t, orders)

	w := doJSON(setupExportRouter(), http.MethodGet, "/export/orders/sql", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	content := data["sql_content"].(string)
	assert.True(t, strings.HasPrefix(content, "-- Orders and Order Items Export"))
	assert.Contains(t, content, "VALUES (1, 101, '2025-08-10', 21.00);")
	assert.NotEmpty(t, data["sql_statements"])
}

func TestImportOrdersJSON(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
		expectedOrders float64
	}{
		{
			name:           "Imports orders and recomputes totals",
			body:           `{"data":[{"order":{"customer_id":1,"order_date":"2025-01-01","total_amount":3},"items":[{"product_id":4,"quantity":2,"unit_price":1.25}]}]}`,
			expectedStatus: http.StatusOK,
			expectedOrders: 1,
		},
		{
			name:           "Missing data field",
			body:           `{"orders":[]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_DATA",
		},
		{
			name:           "Not JSON",
			body:           `<xml/>`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_DATA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, _ := setupTestServices(t)
			w := doJSON(setupExportRouter(), http.MethodPost, "/import/orders/json", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			response := decodeResponse(t, w)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, response))
				return
			}

			assert.Equal(t, "Import completed successfully", response["message"])
			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.expectedOrders, data["imported_orders"])

			list, err := orders.ListOrders(context.Background())
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.True(t, list[0].TotalAmount.Equal(decimal.RequireFromString("2.50")))
		})
	}
}

func TestArchiveOrders(t *testing.T) {
	orders, storage := setupTestServices(t)
	seedOneOrder(t, orders)
	router := setupExportRouter()

	w := doJSON(router, http.MethodPost, "/export/orders/archive", map[string]interface{}{"format": "sql"})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "sql", data["format"])
	assert.True(t, strings.HasPrefix(data["location"].(string), "mock://exports/orders_export_"))
	require.Len(t, storage.Names(), 1)
	assert.True(t, strings.HasSuffix(storage.Names()[0], ".sql"))

	w = doJSON(router, http.MethodPost, "/export/orders/archive", map[string]interface{}{"format": "csv"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, decodeResponse(t, w)))
}
