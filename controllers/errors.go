// controllers/errors.go
package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"invoicely-backend/billing"
	"invoicely-backend/services"
	"invoicely-backend/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondServiceError maps domain errors to HTTP statuses. Anything unknown
// is logged and reported as a 500 without leaking details.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		invalidItem *billing.InvalidItemError
		invalidAdj  *billing.InvalidAdjustmentError
		negative    *billing.NegativeTotalError
		tooLarge    *billing.TotalOutOfRangeError
		overpayment *billing.OverpaymentError
		outOfRange  *billing.IndexOutOfRangeError
		incomplete  *billing.IncompleteInvoiceError
		locked      *billing.InvoiceLockedError
		transition  *billing.InvalidTransitionError
		rateLimited *services.RateLimitedError
		statusMove  *services.StatusChangeError
	)

	switch {
	case errors.As(err, &incomplete):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"missing": incomplete.Missing,
		})
	case errors.As(err, &invalidItem),
		errors.As(err, &invalidAdj),
		errors.As(err, &negative),
		errors.As(err, &tooLarge),
		errors.As(err, &overpayment),
		errors.As(err, &outOfRange),
		errors.As(err, &statusMove):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &locked), errors.As(err, &transition):
		utils.RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvoiceNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "Invoice not found")
	case errors.As(err, &rateLimited):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rateLimited.RetryAfter.Seconds()))))
		utils.RespondWithError(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrInvalidAccessCode):
		utils.RespondWithError(c, http.StatusForbidden, "Invalid access code")
	case errors.Is(err, services.ErrAccessRevoked):
		utils.RespondWithError(c, http.StatusForbidden, "Access revoked")
	case errors.Is(err, services.ErrEmailTaken):
		utils.RespondWithError(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
