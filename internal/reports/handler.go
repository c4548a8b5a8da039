package reports

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/httpx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.GET("/mints", h.Mints)
		reports.GET("/events", h.Events)
	}
}

func (h *Handler) Mints(c *gin.Context) {
	table, err := h.service.MintLedger(c.Request.Context())
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	h.write(c, "mints", table)
}

func (h *Handler) Events(c *gin.Context) {
	var filter events.Filter
	if t := c.Query("type"); t != "" {
		typ := events.Type(t)
		filter.Type = &typ
	}
	if component := c.Query("component"); component != "" {
		filter.Component = &component
	}

	table, err := h.service.AuditTrail(c.Request.Context(), filter)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	h.write(c, "events", table)
}

func (h *Handler) write(c *gin.Context, name string, table Table) {
	format := c.DefaultQuery("format", FormatCSV)

	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case FormatCSV:
		err = WriteCSV(&buf, table)
		contentType = "text/csv"
	case FormatXLSX:
		err = WriteXLSX(&buf, table)
		contentType = xlsxContentType
	case FormatPDF:
		err = WritePDF(&buf, table, time.Now())
		contentType = "application/pdf"
	default:
		httpx.BadRequest(c, "format must be csv, xlsx or pdf")
		return
	}
	if err != nil {
		httpx.RespondError(c, err)
		return
	}

	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("20060102T150405Z"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
