package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-core/middlewares"
	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

// respondServiceError maps service errors onto the JSON envelope.
func respondServiceError(c *gin.Context, err error) {
	if blocked, ok := services.AsInventoryBlocked(err); ok {
		utils.RespondErrorData(c, http.StatusConflict, err, gin.H{"warnings": blocked.Warnings})
		return
	}

	switch {
	case services.IsValidationError(err):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrAlreadyOpen),
		errors.Is(err, services.ErrNotOpen),
		errors.Is(err, services.ErrSessionClosed),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrAlreadyVoided),
		errors.Is(err, services.ErrConcurrencyConflict):
		utils.RespondError(c, http.StatusConflict, err)
	default:
		utils.ErrorLogger.WithField("request_id", requestID(c)).Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func queryDecimal(c *gin.Context, name, fallback string) (decimal.Decimal, bool) {
	raw := c.DefaultQuery(name, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s: %q", name, raw))
		return decimal.Zero, false
	}
	return d, true
}

// queryTime accepts RFC3339 or a plain date.
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t, true
		}
	}
	utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s: use RFC3339 or YYYY-MM-DD", name))
	return nil, false
}

func requestID(c *gin.Context) string {
	return c.GetString(middlewares.ContextRequestID)
}
