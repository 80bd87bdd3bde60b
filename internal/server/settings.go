package server

import (
	"github.com/gin-gonic/gin"
	settingsdomain "github.com/lunaglowlabs/lunaglow/internal/settings/domain"
)

func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.settingsSvc.Active(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, settings)
}

// UpdateSettings replaces the active commission parameters. Transactions
// already opened keep their snapshotted rate.
func (s *Server) UpdateSettings(c *gin.Context) {
	var req settingsdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.settingsSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, settings)
}
