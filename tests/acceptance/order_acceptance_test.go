package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/config"
	"github.com/iara-orders/orders-api/routes"
	"github.com/iara-orders/orders-api/services"
	"github.com/iara-orders/orders-api/tests/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// OrderAcceptanceTestSuite drives a running server the way an API client would
type OrderAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
	db     *gorm.DB
	cfg    *config.Config
}

// SetupSuite runs once before all tests
func (suite *OrderAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	os.Setenv("GO_ENV", "test")
	os.Setenv("PORT", "8080")
	os.Setenv("DATABASE_URL", ":memory:")
	os.Setenv("EXPORT_STORAGE", "local")

	cfg, err := config.Load()
	suite.Require().NoError(err)
	suite.cfg = cfg
	suite.client = &http.Client{Timeout: 5 * time.Second}
}

// SetupTest starts a fresh server over an empty store for every scenario
func (suite *OrderAcceptanceTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	config.SetDB(suite.db)

	orders := services.InitOrderService(suite.db, nil)
	services.InitExportService(orders, services.NewLocalExportStorage(suite.T().TempDir()))

	suite.server = httptest.NewServer(routes.SetupRouter(suite.cfg, zerolog.Nop()))
}

// TearDownTest stops the server
func (suite *OrderAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *OrderAcceptanceTestSuite) call(method, path string, body interface{}) (int, map[string]interface{}) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		suite.Require().NoError(err)
	}

	req, err := http.NewRequest(method, suite.server.URL+path, bytes.NewReader(payload))
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := suite.client.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func data(response map[string]interface{}) map[string]interface{} {
	return response["data"].(map[string]interface{})
}

func errorCode(response map[string]interface{}) string {
	return response["error"].(map[string]interface{})["code"].(string)
}

func (suite *OrderAcceptanceTestSuite) createOrder(customerID int, date string) int {
	status, response := suite.call(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"customer_id": customerID,
		"order_date":  date,
	})
	suite.Require().Equal(http.StatusCreated, status)
	return int(data(response)["order_id"].(float64))
}

// assertTotalsConsistent checks every order total against its items over the API
func (suite *OrderAcceptanceTestSuite) assertTotalsConsistent() {
	_, list := suite.call(http.MethodGet, "/api/v1/orders", nil)
	for _, raw := range list["data"].([]interface{}) {
		order := raw.(map[string]interface{})
		_, items := suite.call(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/items", int(order["order_id"].(float64))), nil)

		sum := 0.0
		for _, rawItem := range items["data"].([]interface{}) {
			item := rawItem.(map[string]interface{})
			assert.InDelta(suite.T(), item["quantity"].(float64)*item["unit_price"].(float64), item["line_total"].(float64), 0.005)
			sum += item["line_total"].(float64)
		}
		assert.InDelta(suite.T(), sum, order["total_amount"].(float64), 0.005)
	}
}

// Scenario: create empty order, add two items, delete the first
func (suite *OrderAcceptanceTestSuite) TestScenario_TotalRecomputation() {
	orderID := suite.createOrder(1, "2025-08-01")
	orderPath := fmt.Sprintf("/api/v1/orders/%d", orderID)

	_, order := suite.call(http.MethodGet, orderPath, nil)
	assert.Equal(suite.T(), float64(0), data(order)["total_amount"])

	status, first := suite.call(http.MethodPost, orderPath+"/items", map[string]interface{}{"product_id": 1, "quantity": 2, "unit_price": 10.00})
	suite.Require().Equal(http.StatusCreated, status)
	_, order = suite.call(http.MethodGet, orderPath, nil)
	assert.Equal(suite.T(), float64(20), data(order)["total_amount"])

	status, _ = suite.call(http.MethodPost, orderPath+"/items", map[string]interface{}{"product_id": 2, "quantity": 3, "unit_price": 15.00})
	suite.Require().Equal(http.StatusCreated, status)
	_, order = suite.call(http.MethodGet, orderPath, nil)
	assert.Equal(suite.T(), float64(65), data(order)["total_amount"])

	firstID := int(data(first)["order_item_id"].(float64))
	status, _ = suite.call(http.MethodDelete, fmt.Sprintf("%s/items/%d", orderPath, firstID), nil)
	suite.Require().Equal(http.StatusOK, status)
	_, order = suite.call(http.MethodGet, orderPath, nil)
	assert.Equal(suite.T(), float64(45), data(order)["total_amount"])

	suite.assertTotalsConsistent()
}

// Scenario: atomic creation of a two-item order
func (suite *OrderAcceptanceTestSuite) TestScenario_CreateWithItems() {
	status, created := suite.call(http.MethodPost, "/api/v1/orders/with-items", map[string]interface{}{
		"customer_id": 301,
		"order_date":  "2024-08-18",
		"items": []map[string]interface{}{
			{"product_id": 1001, "quantity": 1, "unit_price": 899.99},
			{"product_id": 501, "quantity": 2, "unit_price": 25.99},
		},
	})
	suite.Require().Equal(http.StatusCreated, status)
	order := data(created)
	assert.Equal(suite.T(), 951.97, order["total_amount"])

	_, items := suite.call(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/items", int(order["order_id"].(float64))), nil)
	assert.Len(suite.T(), items["data"], 2)
	suite.assertTotalsConsistent()
}

// Scenario: a bad third item leaves no order and no items behind
func (suite *OrderAcceptanceTestSuite) TestScenario_AtomicRejection() {
	status, rejected := suite.call(http.MethodPost, "/api/v1/orders/with-items", map[string]interface{}{
		"customer_id": 77,
		"order_date":  "2024-08-18",
		"items": []map[string]interface{}{
			{"product_id": 9001, "quantity": 1, "unit_price": 5},
			{"product_id": 9002, "quantity": 2, "unit_price": 5},
			{"product_id": 9003, "quantity": -1, "unit_price": 5},
		},
	})
	assert.Equal(suite.T(), http.StatusBadRequest, status)
	assert.Equal(suite.T(), "INVALID_DATA", errorCode(rejected))

	_, list := suite.call(http.MethodGet, "/api/v1/orders", nil)
	assert.Empty(suite.T(), list["data"])
	_, items := suite.call(http.MethodGet, "/api/v1/order-items", nil)
	assert.Empty(suite.T(), items["data"])
}

// Scenario: deleting an order with three items leaves no items
func (suite *OrderAcceptanceTestSuite) TestScenario_Cascade() {
	orderID := suite.createOrder(2, "2025-08-02")
	for product := 1; product <= 3; product++ {
		status, _ := suite.call(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/items", orderID), map[string]interface{}{"product_id": product, "quantity": 1, "unit_price": 2})
		suite.Require().Equal(http.StatusCreated, status)
	}

	status, _ := suite.call(http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d", orderID), nil)
	suite.Require().Equal(http.StatusOK, status)

	_, items := suite.call(http.MethodGet, "/api/v1/order-items", nil)
	assert.Empty(suite.T(), items["data"])
}

// Scenario: unknown ids map to not-found errors
func (suite *OrderAcceptanceTestSuite) TestScenario_NotFound() {
	status, response := suite.call(http.MethodGet, "/api/v1/orders/999999", nil)
	assert.Equal(suite.T(), http.StatusNotFound, status)
	assert.Equal(suite.T(), "ORDER_NOT_FOUND", errorCode(response))

	status, response = suite.call(http.MethodPost, "/api/v1/orders/999999/items", map[string]interface{}{"product_id": 1, "quantity": 1, "unit_price": 1})
	assert.Equal(suite.T(), http.StatusNotFound, status)
	assert.Equal(suite.T(), "PARENT_NOT_FOUND", errorCode(response))

	orderID := suite.createOrder(3, "2025-08-03")
	status, response = suite.call(http.MethodPut, fmt.Sprintf("/api/v1/orders/%d/items/424242", orderID), map[string]interface{}{"product_id": 1, "quantity": 1, "unit_price": 1})
	assert.Equal(suite.T(), http.StatusNotFound, status)
	assert.Equal(suite.T(), "ITEM_NOT_FOUND", errorCode(response))
}

// Scenario: an order update never changes the derived total
func (suite *OrderAcceptanceTestSuite) TestScenario_UpdateKeepsTotal() {
	orderID := suite.createOrder(4, "2025-08-04")
	suite.call(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/items", orderID), map[string]interface{}{"product_id": 1, "quantity": 4, "unit_price": 2.5})

	status, updated := suite.call(http.MethodPut, fmt.Sprintf("/api/v1/orders/%d", orderID), map[string]interface{}{
		"customer_id":  40,
		"order_date":   "2025-09-01",
		"total_amount": 0,
	})
	suite.Require().Equal(http.StatusOK, status)
	assert.Equal(suite.T(), float64(40), data(updated)["customer_id"])
	assert.Equal(suite.T(), float64(10), data(updated)["total_amount"])
	suite.assertTotalsConsistent()
}

// TestOrderAcceptanceTestSuite runs the acceptance test suite
func TestOrderAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderAcceptanceTestSuite))
}
