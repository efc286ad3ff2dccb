package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"appeloffres/api/internal/models"
	"appeloffres/api/internal/services"
)

type DraftsHandler struct {
	demands  DemandStore
	drafter  SectionDrafter
	analysis *services.AnalysisCache
}

func NewDraftsHandler(demands DemandStore, drafter SectionDrafter, analysis *services.AnalysisCache) *DraftsHandler {
	return &DraftsHandler{
		demands:  demands,
		drafter:  drafter,
		analysis: analysis,
	}
}

type draftRequest struct {
	Instructions string `json:"instructions"`
	// RCText is the plain text of a consultation rules document to draft from.
	RCText string `json:"rcText"`
}

// HandleDraft handles POST /demands/{demandID}/sections/{sectionID}/draft. The generated content is
// saved into the section and the updated section is returned.
func (h *DraftsHandler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	if h.drafter == nil {
		writeError(w, http.StatusServiceUnavailable, "AI drafting is not configured")
		return
	}

	var req draftRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()
	companyID := CompanyIDFromContext(ctx)
	p, err := h.demands.Get(ctx, companyID, chi.URLParam(r, "demandID"))
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}

	var rc *models.RCSummary
	if strings.TrimSpace(req.RCText) != "" {
		summary := services.AnalyzeRC(req.RCText)
		rc = &summary
	}

	sectionID := chi.URLParam(r, "sectionID")
	section, err := h.drafter.DraftSection(ctx, *p, sectionID, req.Instructions, rc)
	switch {
	case errors.Is(err, services.ErrSectionNotFound):
		writeError(w, http.StatusNotFound, "section not found")
		return
	case errors.Is(err, services.ErrEmptyDraft):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		slog.ErrorContext(ctx, "section draft failed", "demand_id", p.ID, "section_id", sectionID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.demands.UpdateSectionContent(ctx, companyID, p.ID, section.ID, section.Content); err != nil {
		writeStoreError(w, r, err, "section not found")
		return
	}

	for i := range p.Sections {
		if p.Sections[i].ID == section.ID {
			p.Sections[i] = section
		}
	}
	score := h.analysis.Check(*p).Percentage
	if err := h.demands.SaveCompleteness(ctx, companyID, p.ID, score); err != nil {
		slog.WarnContext(ctx, "failed to save completeness", "demand_id", p.ID, "error", err)
	}

	WriteJSON(w, http.StatusOK, section)
}
