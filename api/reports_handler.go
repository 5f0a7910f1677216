package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"api_pos/internal/reports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type reportsHandler struct {
	reports *reports.Service
	logger  *zap.Logger
}

func newReportsHandler(reports *reports.Service, logger *zap.Logger) *reportsHandler {
	return &reportsHandler{reports: reports, logger: logger}
}

func (h *reportsHandler) dashboard(ctx *gin.Context) {
	stats, err := h.reports.Dashboard(ctx.Request.Context(), time.Now())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// salesByDay handles GET /api/reports/sales?start_date=&end_date=.
func (h *reportsHandler) salesByDay(ctx *gin.Context) {
	from, err := reports.ParseDate(ctx.Query("start_date"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	to, err := reports.ParseDate(ctx.Query("end_date"))
	if err != nil {
		writeError(ctx, err)
		return
	}

	rows, err := h.reports.SalesByDay(ctx.Request.Context(), from, to)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rows)
}

func (h *reportsHandler) products(ctx *gin.Context) {
	rows, err := h.reports.ProductPerformance(ctx.Request.Context())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rows)
}

func (h *reportsHandler) exportCSV(ctx *gin.Context) {
	h.export(ctx, "csv", csvContentType, h.reports.WriteCSV)
}

func (h *reportsHandler) exportXLSX(ctx *gin.Context) {
	h.export(ctx, "xlsx", xlsxContentType, h.reports.WriteXLSX)
}

// export renders the requested dataset in memory and sends it as an
// attachment, so a failed query still yields a JSON error.
func (h *reportsHandler) export(ctx *gin.Context, ext, contentType string, write func(context.Context, io.Writer, reports.Kind) error) {
	kind, err := reports.ParseKind(ctx.DefaultQuery("type", string(reports.KindSales)))
	if err != nil {
		writeError(ctx, err)
		return
	}

	var buf bytes.Buffer
	if err := write(ctx.Request.Context(), &buf, kind); err != nil {
		writeError(ctx, err)
		return
	}

	h.logger.Info("report exported",
		zap.String("type", string(kind)),
		zap.String("format", ext),
		zap.Int("bytes", buf.Len()),
	)
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", kind.Filename(ext)))
	ctx.Data(http.StatusOK, contentType, buf.Bytes())
}
