package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleExportRisks(c *gin.Context) {
	b, err := s.deps.Export.RiskReportXLSX(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="risk-report.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, b)
}
