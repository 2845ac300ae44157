package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/models"
	"github.com/iara-orders/orders-api/services"
	"github.com/shopspring/decimal"
)

// OrderRequest represents the request body for creating or updating an order
type OrderRequest struct {
	CustomerID *uint  `json:"customer_id" binding:"required"`
	OrderDate  string `json:"order_date" binding:"required"`
}

// ItemRequest represents one order item in a request body
type ItemRequest struct {
	ProductID *uint            `json:"product_id" binding:"required"`
	Quantity  *int             `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price" binding:"required"`
}

func (r ItemRequest) itemSpec() services.ItemSpec {
	return services.ItemSpec{
		ProductID: *r.ProductID,
		Quantity:  *r.Quantity,
		UnitPrice: *r.UnitPrice,
	}
}

// OrderWithItemsRequest represents the request body for atomic order creation
type OrderWithItemsRequest struct {
	CustomerID *uint         `json:"customer_id" binding:"required"`
	OrderDate  string        `json:"order_date" binding:"required"`
	Items      []ItemRequest `json:"items" binding:"dive"`
}

// CreateOrder handles POST /api/v1/orders - creates an order with no items
func CreateOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	orderDate, ok := dateField(c, req.OrderDate)
	if !ok {
		return
	}

	order, err := services.GetOrderService().CreateOrder(c.Request.Context(), *req.CustomerID, orderDate)
	if err != nil {
		respondError(c, err, "Failed to create order")
		return
	}

	respondData(c, http.StatusCreated, order)
}

// CreateOrderWithItems handles POST /api/v1/orders/with-items - creates an
// order and all of its items in one transaction
func CreateOrderWithItems(c *gin.Context) {
	var req OrderWithItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	orderDate, ok := dateField(c, req.OrderDate)
	if !ok {
		return
	}

	specs := make([]services.ItemSpec, len(req.Items))
	for i, item := range req.Items {
		specs[i] = item.itemSpec()
	}

	order, err := services.GetOrderService().CreateOrderWithItems(c.Request.Context(), *req.CustomerID, orderDate, specs)
	if err != nil {
		respondError(c, err, "Failed to create order with items")
		return
	}

	respondData(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders - lists every order by id
func ListOrders(c *gin.Context) {
	orders, err := services.GetOrderService().ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	respondData(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	order, err := services.GetOrderService().GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to retrieve order")
		return
	}

	respondData(c, http.StatusOK, order)
}

// UpdateOrder handles PUT /api/v1/orders/:id - only customer_id and
// order_date can change; the total stays derived from the items
func UpdateOrder(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	orderDate, ok := dateField(c, req.OrderDate)
	if !ok {
		return
	}

	order, err := services.GetOrderService().UpdateOrder(c.Request.Context(), orderID, *req.CustomerID, orderDate)
	if err != nil {
		respondError(c, err, "Failed to update order")
		return
	}

	respondData(c, http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/orders/:id - removes the order and its items
func DeleteOrder(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := services.GetOrderService().DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondError(c, err, "Failed to delete order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order deleted successfully",
	})
}

// OrderSummary handles GET /api/v1/orders/:id/summary
func OrderSummary(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	summary, err := services.GetOrderService().OrderSummary(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err, "Failed to build order summary")
		return
	}

	respondData(c, http.StatusOK, summary)
}

// Stats handles GET /api/v1/stats - store-wide order statistics
func Stats(c *gin.Context) {
	stats, err := services.GetOrderService().Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to compute statistics")
		return
	}

	respondData(c, http.StatusOK, stats)
}
