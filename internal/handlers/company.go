package handlers

import (
	"net/http"
	"strings"

	"appeloffres/api/internal/models"
)

type CompanyHandler struct {
	companies CompanyStore
}

func NewCompanyHandler(companies CompanyStore) *CompanyHandler {
	return &CompanyHandler{companies: companies}
}

// HandleGet handles GET /company
func (h *CompanyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	company, err := h.companies.Get(r.Context(), CompanyIDFromContext(r.Context()))
	if err != nil {
		writeStoreError(w, r, err, "company profile not found")
		return
	}
	WriteJSON(w, http.StatusOK, company)
}

// HandlePut handles PUT /company
func (h *CompanyHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name    string  `json:"name"`
		Siret   *string `json:"siret"`
		Address *string `json:"address"`
		City    *string `json:"city"`
		Email   *string `json:"email"`
		Phone   *string `json:"phone"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	company := &models.Company{
		ID:      CompanyIDFromContext(r.Context()),
		Name:    strings.TrimSpace(in.Name),
		Siret:   clean(in.Siret),
		Address: clean(in.Address),
		City:    clean(in.City),
		Email:   clean(in.Email),
		Phone:   clean(in.Phone),
	}
	if err := h.companies.Upsert(r.Context(), company); err != nil {
		writeStoreError(w, r, err, "company profile not found")
		return
	}
	WriteJSON(w, http.StatusOK, company)
}
