package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunEligibilitySweep triggers the commission settlement pass on demand
// instead of waiting for the next scheduler tick.
func (s *Server) RunEligibilitySweep(c *gin.Context) {
	result, err := s.sched.EligibilitySweepJob(c.Request.Context())
	if err != nil {
		s.log.Error("manual eligibility sweep failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}
	respondData(c, result)
}

func (s *Server) RunRewardSweep(c *gin.Context) {
	result, err := s.sched.RewardSweepJob(c.Request.Context())
	if err != nil {
		s.log.Error("manual reward sweep failed", zap.Error(err))
		AbortWithError(c, ErrInternal)
		return
	}
	respondData(c, result)
}
