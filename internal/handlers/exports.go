package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"appeloffres/api/internal/models"
	"appeloffres/api/internal/repositories"
	"appeloffres/api/internal/services"
)

var exportContentTypes = map[string]string{
	services.FormatPDF:      "application/pdf",
	services.FormatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	services.FormatMarkdown: "text/markdown; charset=utf-8",
	services.FormatZIP:      "application/zip",
}

type ExportsHandler struct {
	demands   DemandStore
	annexes   AnnexStore
	companies CompanyStore
	blobs     services.BlobFetcher
	now       func() time.Time
}

func NewExportsHandler(demands DemandStore, annexes AnnexStore, companies CompanyStore, blobs services.BlobFetcher, now func() time.Time) *ExportsHandler {
	if now == nil {
		now = time.Now
	}
	return &ExportsHandler{
		demands:   demands,
		annexes:   annexes,
		companies: companies,
		blobs:     blobs,
		now:       now,
	}
}

// HandleExport handles GET /demands/{demandID}/export/{format}
func (h *ExportsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(chi.URLParam(r, "format"))
	contentType, ok := exportContentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q", format))
		return
	}

	ctx := r.Context()
	companyID := CompanyIDFromContext(ctx)
	p, err := h.demands.Get(ctx, companyID, chi.URLParam(r, "demandID"))
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}

	// The company profile is optional on exports.
	company, err := h.companies.Get(ctx, companyID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		writeStoreError(w, r, err, demandNotFound)
		return
	}

	now := h.now()
	doc := services.NewExportDocument(*p, company, now)
	filename := services.ExportFilenameFor(*p, format, now)

	var annexes []models.Annex
	if format == services.FormatZIP {
		annexes, err = h.annexes.ListByDemand(ctx, companyID, p.ID)
		if err != nil {
			writeStoreError(w, r, err, demandNotFound)
			return
		}
	}

	data, err := services.Render(ctx, format, doc, strings.TrimSuffix(filename, "."+format), annexes, h.blobs)
	if err != nil {
		slog.ErrorContext(ctx, "export failed", "demand_id", p.ID, "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.WarnContext(ctx, "failed to write export", "demand_id", p.ID, "error", err)
	}
}
