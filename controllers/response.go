package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iara-orders/orders-api/models"
	"github.com/iara-orders/orders-api/services"
	"github.com/iara-orders/orders-api/utils"
	"github.com/rs/zerolog/log"
)

// respondData writes the success envelope
func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondFailure writes the error envelope
func respondFailure(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondValidationError reports a request body that could not be bound
func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// respondError maps a service error onto a status code and envelope
func respondError(c *gin.Context, err error, fallback string) {
	var storeErr *services.StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case services.ErrOrderNotFound.Code, services.ErrItemNotFound.Code, services.ErrParentNotFound.Code:
			respondFailure(c, http.StatusNotFound, storeErr.Code, storeErr.Message)
			return
		case services.ErrInvalidData.Code:
			respondFailure(c, http.StatusBadRequest, storeErr.Code, storeErr.Message)
			return
		case services.ErrTransactionFailed.Code:
			log.Ctx(c.Request.Context()).Error().Err(err).Msg(fallback)
			respondFailure(c, http.StatusInternalServerError, storeErr.Code, storeErr.Message)
			return
		}
	}

	if errors.Is(err, services.ErrExportNotFound) {
		respondFailure(c, http.StatusNotFound, "FILE_NOT_FOUND", err.Error())
		return
	}
	var fileErr *utils.ExportFileError
	if errors.As(err, &fileErr) {
		status := http.StatusBadRequest
		if fileErr.Code == "FILE_NOT_FOUND" {
			status = http.StatusNotFound
		}
		respondFailure(c, status, fileErr.Code, fileErr.Message)
		return
	}

	log.Ctx(c.Request.Context()).Error().Err(err).Msg(fallback)
	respondFailure(c, http.StatusInternalServerError, "DATABASE_ERROR", fallback)
}

// idParam parses a positive numeric path parameter, writing a 400 if it is not one
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondFailure(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}

// dateField parses a YYYY-MM-DD body field, writing a 400 if it is malformed
func dateField(c *gin.Context, value string) (models.Date, bool) {
	date, err := models.ParseDate(value)
	if err != nil {
		respondFailure(c, http.StatusBadRequest, services.ErrInvalidData.Code, "order_date must be a YYYY-MM-DD date")
		return models.Date{}, false
	}
	return date, true
}
