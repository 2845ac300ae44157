package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/models"
	"github.com/iara-orders/orders-api/services"
)

// ListOrderItems handles GET /api/v1/orders/:id/items
func ListOrderItems(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	svc := services.GetOrderService()
	ctx := c.Request.Context()
	if _, err := svc.GetOrder(ctx, orderID); err != nil {
		respondError(c, err, "Failed to retrieve order")
		return
	}

	items, err := svc.ListItemsForOrder(ctx, orderID)
	if err != nil {
		respondError(c, err, "Failed to retrieve order items")
		return
	}
	if items == nil {
		items = []models.OrderItem{}
	}

	respondData(c, http.StatusOK, items)
}

// ListAllItems handles GET /api/v1/order-items - every item of every order
func ListAllItems(c *gin.Context) {
	items, err := services.GetOrderService().ListItems(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve order items")
		return
	}
	if items == nil {
		items = []models.OrderItem{}
	}

	respondData(c, http.StatusOK, items)
}

// CreateOrderItem handles POST /api/v1/orders/:id/items - adds an item and
// recomputes the order total
func CreateOrderItem(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	item, err := services.GetOrderService().CreateItem(c.Request.Context(), orderID, req.itemSpec())
	if err != nil {
		respondError(c, err, "Failed to add item to order")
		return
	}

	respondData(c, http.StatusCreated, item)
}

// UpdateOrderItem handles PUT /api/v1/orders/:id/items/:item_id
func UpdateOrderItem(c *gin.Context) {
	orderID, itemID, ok := orderItemParams(c)
	if !ok {
		return
	}

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if !itemBelongsToOrder(c, orderID, itemID) {
		return
	}

	item, err := services.GetOrderService().UpdateItem(c.Request.Context(), itemID, req.itemSpec())
	if err != nil {
		respondError(c, err, "Failed to update order item")
		return
	}

	respondData(c, http.StatusOK, item)
}

// DeleteOrderItem handles DELETE /api/v1/orders/:id/items/:item_id
func DeleteOrderItem(c *gin.Context) {
	orderID, itemID, ok := orderItemParams(c)
	if !ok {
		return
	}

	if !itemBelongsToOrder(c, orderID, itemID) {
		return
	}

	if err := services.GetOrderService().DeleteItem(c.Request.Context(), itemID); err != nil {
		respondError(c, err, "Failed to delete order item")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order item deleted successfully",
	})
}

func orderItemParams(c *gin.Context) (uint, uint, bool) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return 0, 0, false
	}
	itemID, ok := idParam(c, "item_id")
	if !ok {
		return 0, 0, false
	}
	return orderID, itemID, true
}

// itemBelongsToOrder writes a 404 unless the order exists and owns the item
func itemBelongsToOrder(c *gin.Context, orderID, itemID uint) bool {
	svc := services.GetOrderService()
	ctx := c.Request.Context()

	if _, err := svc.GetOrder(ctx, orderID); err != nil {
		respondError(c, err, "Failed to retrieve order")
		return false
	}

	item, err := svc.GetItem(ctx, itemID)
	if err != nil {
		respondError(c, err, "Failed to retrieve order item")
		return false
	}
	if item.OrderID != orderID {
		respondFailure(c, http.StatusNotFound, services.ErrItemNotFound.Code, "Order item not found in this order")
		return false
	}
	return true
}
