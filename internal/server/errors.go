package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/lunaglowlabs/lunaglow/internal/commission/domain"
	"github.com/lunaglowlabs/lunaglow/internal/ratelimit"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	referralcodedomain "github.com/lunaglowlabs/lunaglow/internal/referralcode/domain"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid request")
	ErrRateLimited    = errors.New("rate limited")
	ErrInternal       = errors.New("internal error")
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Message }

func newValidationError(field, code, message string) error {
	return &apiError{Status: http.StatusBadRequest, Code: code, Field: field, Message: message}
}

func invalidRequestError() error {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body could not be parsed"}
}

// AbortWithError maps domain errors onto the wire format. Anything it does
// not recognize becomes an opaque 500; the handler is expected to have logged
// the details already.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"

	switch {
	case errors.Is(err, ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "unauthorized", "unauthorized"
	case errors.Is(err, ErrForbidden):
		status, code, message = http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, ErrInvalidRequest):
		status, code, message = http.StatusBadRequest, "invalid_request", "invalid request"
	case errors.Is(err, ErrRateLimited), errors.Is(err, ratelimit.ErrRateLimited):
		status, code, message = http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later"
	case errors.Is(err, referralcodedomain.ErrInvalidCode):
		status, code, message = http.StatusBadRequest, "invalid_code", err.Error()
	case errors.Is(err, referraldomain.ErrSelfReferral):
		status, code, message = http.StatusBadRequest, "self_referral_forbidden", err.Error()
	case errors.Is(err, referraldomain.ErrAlreadyReferred):
		status, code, message = http.StatusBadRequest, "already_referred", err.Error()
	case errors.Is(err, referraldomain.ErrReferralNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, commissiondomain.ErrTransactionMissing):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, settingsdomain.ErrInvalidRate),
		errors.Is(err, settingsdomain.ErrInvalidEligibilityDays),
		errors.Is(err, settingsdomain.ErrInvalidRewardPercent):
		status, code, message = http.StatusBadRequest, "invalid_settings", err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": &apiError{Status: status, Code: code, Message: message}})
}
