package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	referraldomain "github.com/lunaglowlabs/lunaglow/internal/referral/domain"
	"go.uber.org/zap"
)

type registerReferralRequest struct {
	Code           string `json:"code"`
	ReferredUserID string `json:"referred_user_id"`
	ReferredEmail  string `json:"referred_email"`
}

// RegisterReferral records a signup attributed to a referral code. The
// attempt is rate limited per client IP before the code is even looked at.
func (s *Server) RegisterReferral(c *gin.Context) {
	if err := s.limiter.Allow(c.Request.Context(), c.ClientIP()); err != nil {
		AbortWithError(c, err)
		return
	}

	var req registerReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		AbortWithError(c, newValidationError("code", "missing_code", "code is required"))
		return
	}

	referredID, err := snowflake.ParseString(strings.TrimSpace(req.ReferredUserID))
	if err != nil || referredID == 0 {
		AbortWithError(c, newValidationError("referred_user_id", "invalid_id", "invalid user id"))
		return
	}

	referral, err := s.referralSvc.Register(c.Request.Context(), referraldomain.RegisterRequest{
		Code:           code,
		ReferredUserID: referredID,
		ReferredEmail:  strings.TrimSpace(req.ReferredEmail),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, referral)
}

// GetReferralCode returns the user's shareable code, issuing one on first
// request.
func (s *Server) GetReferralCode(c *gin.Context) {
	userID, err := userIDFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	code, err := s.codeSvc.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("failed to issue referral code", zap.String("user_id", userID.String()), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	respondData(c, code)
}

func (s *Server) ListReferrals(c *gin.Context) {
	userID, err := userIDFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	referrals, err := s.referralSvc.ListByReferrer(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, referrals)
}

func (s *Server) GetBalance(c *gin.Context) {
	userID, err := userIDFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.commissionSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, balance)
}

func userIDFromQuery(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Query("user_id"))
	if raw == "" {
		return 0, newValidationError("user_id", "missing_user_id", "user_id is required")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, newValidationError("user_id", "invalid_id", "invalid user id")
	}
	return id, nil
}
