package handler

import (
	"fmt"
	"strconv"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/logger"
	"invoicedesk/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// respondError writes the client-safe form of err. The full error is attached to the
// gin context for the request logger, and logged here when it is a server fault.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperror.HTTPStatus(err)
	msg := apperror.PublicMessage(err)
	_ = c.Error(err)

	if status >= 500 {
		log.Error("handler failed",
			zap.String("request_id", logger.RequestID(c)),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}

	if apperror.IsRetryable(err) {
		c.JSON(status, response.RetryableError(status, msg))
		return
	}
	c.JSON(status, response.Error(status, msg))
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invoice id must be a positive integer", apperror.ErrInvalidRequest)
	}
	return uint(id), nil
}

// parseDay reads a YYYY-MM-DD query parameter. An absent parameter yields the zero time.
func parseDay(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", apperror.ErrInvalidRequest, key)
	}
	return day, nil
}
