package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"appeloffres/api/internal/models"
	"appeloffres/api/internal/repositories"
	"appeloffres/api/internal/services"
)

const demandNotFound = "demand not found"

type DemandsHandler struct {
	demands  DemandStore
	annexes  AnnexStore
	blobs    BlobStore
	analysis *services.AnalysisCache
}

func NewDemandsHandler(demands DemandStore, annexes AnnexStore, blobs BlobStore, analysis *services.AnalysisCache) *DemandsHandler {
	return &DemandsHandler{
		demands:  demands,
		annexes:  annexes,
		blobs:    blobs,
		analysis: analysis,
	}
}

// demandInput is the body of POST /demands and PUT /demands/{id}. Omitted fields are cleared.
type demandInput struct {
	Title               *string          `json:"title"`
	Reference           *string          `json:"reference"`
	DepartmentName      *string          `json:"departmentName"`
	ContactName         *string          `json:"contactName"`
	ContactEmail        *string          `json:"contactEmail"`
	NeedType            *string          `json:"needType"`
	UrgencyLevel        *string          `json:"urgencyLevel"`
	BudgetRange         *string          `json:"budgetRange"`
	DesiredDeliveryDate *string          `json:"desiredDeliveryDate"`
	Description         *string          `json:"description"`
	Sections            []models.Section `json:"sections"`
}

func (in demandInput) validate() error {
	if in.UrgencyLevel != nil {
		switch models.UrgencyLevel(strings.TrimSpace(*in.UrgencyLevel)) {
		case "", models.UrgencyLow, models.UrgencyNormal, models.UrgencyHigh, models.UrgencyCritical:
		default:
			return fmt.Errorf("invalid urgencyLevel %q", *in.UrgencyLevel)
		}
	}
	if email := strings.TrimSpace(models.Value(in.ContactEmail)); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("invalid contactEmail %q", email)
		}
	}
	return validateSections(in.Sections)
}

// apply copies the scalar fields onto p. Blank strings become nil.
func (in demandInput) apply(p *models.DemandProject) {
	p.Title = clean(in.Title)
	p.Reference = clean(in.Reference)
	p.DepartmentName = clean(in.DepartmentName)
	p.ContactName = clean(in.ContactName)
	p.ContactEmail = clean(in.ContactEmail)
	p.NeedType = clean(in.NeedType)
	p.UrgencyLevel = clean(in.UrgencyLevel)
	p.BudgetRange = clean(in.BudgetRange)
	p.DesiredDeliveryDate = clean(in.DesiredDeliveryDate)
	p.Description = clean(in.Description)
}

func clean(s *string) *string {
	if s == nil {
		return nil
	}
	return models.StringPtr(*s)
}

func validateSections(sections []models.Section) error {
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("section title is required")
		}
		id := strings.TrimSpace(s.ID)
		if id == "" {
			continue
		}
		if seen[id] {
			return fmt.Errorf("duplicate section id %q", id)
		}
		seen[id] = true
	}
	return nil
}

// HandleList handles GET /demands
func (h *DemandsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	params := repositories.ListParams{
		SearchText: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:      20,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			params.Limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			params.Offset = parsed
		}
	}

	result, err := h.demands.List(r.Context(), CompanyIDFromContext(r.Context()), params)
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	if result.Items == nil {
		result.Items = []models.DemandProject{}
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleCreate handles POST /demands
func (h *DemandsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in demandInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	companyID := CompanyIDFromContext(r.Context())
	p := &models.DemandProject{Sections: in.Sections}
	in.apply(p)

	if err := h.demands.Create(r.Context(), companyID, p); err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	h.storeCompleteness(r, p)

	WriteJSON(w, http.StatusCreated, p)
}

// HandleGet handles GET /demands/{demandID}
func (h *DemandsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.demands.Get(r.Context(), CompanyIDFromContext(r.Context()), chi.URLParam(r, "demandID"))
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// HandleUpdate handles PUT /demands/{demandID}. Sections in the body, when present, replace the
// existing ones.
func (h *DemandsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in demandInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	companyID := CompanyIDFromContext(ctx)
	p, err := h.demands.Get(ctx, companyID, chi.URLParam(r, "demandID"))
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}

	in.apply(p)
	save := h.demands.Update
	if in.Sections != nil {
		p.Sections = in.Sections
		save = h.demands.UpdateWithSections
	}

	score := h.analysis.Check(*p).Percentage
	p.CompletenessScore = &score
	if err := save(ctx, companyID, p); err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /demands/{demandID}. Annex rows go with the demand; their stored files
// are removed afterwards on a best-effort basis.
func (h *DemandsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := CompanyIDFromContext(ctx)
	demandID := chi.URLParam(r, "demandID")

	annexes, err := h.annexes.ListByDemand(ctx, companyID, demandID)
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	if err := h.demands.Delete(ctx, companyID, demandID); err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}

	if h.blobs != nil {
		for _, a := range annexes {
			if err := h.blobs.Delete(ctx, a.StorageKey); err != nil {
				slog.WarnContext(ctx, "failed to delete annex file", "demand_id", demandID, "key", a.StorageKey, "error", err)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReplaceSections handles PUT /demands/{demandID}/sections with body {"sections": [...]}
func (h *DemandsHandler) HandleReplaceSections(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sections []models.Section `json:"sections"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Sections == nil {
		body.Sections = []models.Section{}
	}
	if err := validateSections(body.Sections); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	companyID := CompanyIDFromContext(ctx)
	p, err := h.demands.Get(ctx, companyID, chi.URLParam(r, "demandID"))
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	if err := h.demands.ReplaceSections(ctx, companyID, p.ID, body.Sections); err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	p.Sections = body.Sections
	h.storeCompleteness(r, p)

	WriteJSON(w, http.StatusOK, p)
}

// HandleCompleteness handles GET /demands/{demandID}/completeness
func (h *DemandsHandler) HandleCompleteness(w http.ResponseWriter, r *http.Request) {
	p, err := h.demands.Get(r.Context(), CompanyIDFromContext(r.Context()), chi.URLParam(r, "demandID"))
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}

	result := h.analysis.Check(*p)
	if p.CompletenessScore == nil || *p.CompletenessScore != result.Percentage {
		h.storeCompleteness(r, p)
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleAnnexes handles GET /demands/{demandID}/annexes
func (h *DemandsHandler) HandleAnnexes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := CompanyIDFromContext(ctx)
	demandID := chi.URLParam(r, "demandID")

	// Another company's demand answers 404, not an empty list.
	if _, err := h.demands.Get(ctx, companyID, demandID); err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	annexes, err := h.annexes.ListByDemand(ctx, companyID, demandID)
	if err != nil {
		writeStoreError(w, r, err, demandNotFound)
		return
	}
	if annexes == nil {
		annexes = []models.Annex{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": annexes})
}

// storeCompleteness recomputes the score of p and persists it. Failures are logged, not returned.
func (h *DemandsHandler) storeCompleteness(r *http.Request, p *models.DemandProject) {
	score := h.analysis.Check(*p).Percentage
	p.CompletenessScore = &score
	if err := h.demands.SaveCompleteness(r.Context(), CompanyIDFromContext(r.Context()), p.ID, score); err != nil {
		slog.WarnContext(r.Context(), "failed to save completeness", "demand_id", p.ID, "error", err)
	}
}
