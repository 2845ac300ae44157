package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/config"
	"github.com/iara-orders/orders-api/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDatabase installs a migrated in-memory database and the services over it
func setupTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	original := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(original)
		sqlDB.Close()
	})

	orders := services.InitOrderService(db, nil)
	services.InitExportService(orders, services.NewMockExportStorage())
	return db
}

// setupRouter creates the full application router for testing
func setupRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	setupTestDatabase(t)
	if cfg == nil {
		cfg = &config.Config{GoEnv: "test", CORSAllowedOrigins: []string{"*"}}
	}
	return SetupRouter(cfg, zerolog.Nop())
}

func TestCorsConfig(t *testing.T) {
	all := corsConfig(&config.Config{CORSAllowedOrigins: []string{"*"}})
	assert.True(t, all.AllowAllOrigins)

	listed := corsConfig(&config.Config{CORSAllowedOrigins: []string{"http://localhost:3000"}})
	assert.False(t, listed.AllowAllOrigins)
	assert.Equal(t, []string{"http://localhost:3000"}, listed.AllowOrigins)
}

// TestHealthEndpointIntegration tests the /api/v1/health endpoint with full routing
func TestHealthEndpointIntegration(t *testing.T) {
	router := setupRouter(t, nil)

	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status 200 OK")
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Orders API is running", response["message"])
}

// TestHealthEndpointMethod tests that only GET method is allowed
func TestHealthEndpointMethod(t *testing.T) {
	router := setupRouter(t, nil)

	for _, method := range []string{"POST", "PUT", "DELETE"} {
		req, _ := http.NewRequest(method, "/api/v1/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s should not be allowed", method)
	}
}

// TestAPIV1Prefix tests that routes require the /api/v1 prefix
func TestAPIV1Prefix(t *testing.T) {
	router := setupRouter(t, nil)

	for _, path := range []string{"/health", "/orders"} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s should require /api/v1 prefix", path)
	}
}

func TestStaticRouteWinsOverOrderID(t *testing.T) {
	router := setupRouter(t, nil)

	req, _ := http.NewRequest("POST", "/api/v1/orders/with-items", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", response["error"].(map[string]interface{})["code"])
}

func TestCORSPreflight(t *testing.T) {
	router := setupRouter(t, &config.Config{GoEnv: "test", CORSAllowedOrigins: []string{"http://localhost:3000"}})

	req, _ := http.NewRequest("OPTIONS", "/api/v1/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitedRouter(t *testing.T) {
	router := setupRouter(t, &config.Config{GoEnv: "test", CORSAllowedOrigins: []string{"*"}, RateLimitRPS: 1, RateLimitBurst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", "/api/v1/health", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
