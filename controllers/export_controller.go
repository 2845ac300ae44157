package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/services"
	"github.com/iara-orders/orders-api/utils"
)

// ArchiveRequest represents the request body for archiving an export
type ArchiveRequest struct {
	Format string `json:"format" binding:"required,oneof=json sql"`
}

// ExportOrdersJSON handles GET /api/v1/export/orders/json
func ExportOrdersJSON(c *gin.Context) {
	doc, err := services.GetExportService().ExportJSON(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to export orders")
		return
	}

	respondData(c, http.StatusOK, doc)
}

// ExportOrdersSQL handles GET /api/v1/export/orders/sql
func ExportOrdersSQL(c *gin.Context) {
	export, err := services.GetExportService().ExportSQL(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to export orders")
		return
	}

	respondData(c, http.StatusOK, export)
}

// ImportOrdersJSON handles POST /api/v1/import/orders/json - the body is a
// document in the JSON export format
func ImportOrdersJSON(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxExportFileSize)
	content, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondFailure(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Import document exceeds maximum allowed size")
		return
	}

	result, err := services.GetExportService().ImportJSON(c.Request.Context(), content)
	if err != nil {
		respondError(c, err, "Import failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Import completed successfully",
		"data":    result,
	})
}

// ArchiveOrders handles POST /api/v1/export/orders/archive - writes an
// export file to the configured export storage
func ArchiveOrders(c *gin.Context) {
	var req ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	location, err := services.GetExportService().Archive(c.Request.Context(), req.Format)
	if err != nil {
		respondError(c, err, "Failed to archive export")
		return
	}

	respondData(c, http.StatusCreated, gin.H{
		"format":   req.Format,
		"location": location,
	})
}
