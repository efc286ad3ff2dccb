package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appeloffres/api/internal/models"
	"appeloffres/api/internal/services"
	"appeloffres/api/internal/storage"
)

const testCompany = "company-1"

type testServer struct {
	handler   http.Handler
	demands   *fakeDemandStore
	annexes   *fakeAnnexStore
	companies *fakeCompanyStore
	blobs     *storage.MemoryStore
}

func newTestServer(t *testing.T, drafter SectionDrafter) *testServer {
	t.Helper()
	analysis, err := services.NewAnalysisCache(16)
	require.NoError(t, err)

	ts := &testServer{
		demands:   newFakeDemandStore(),
		annexes:   &fakeAnnexStore{annexes: make(map[string][]models.Annex)},
		companies: newFakeCompanyStore(),
		blobs:     storage.NewMemoryStore(),
	}
	ts.handler = NewRouter(Deps{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Demands:   ts.demands,
		Annexes:   ts.annexes,
		Companies: ts.companies,
		Blobs:     ts.blobs,
		Drafter:   drafter,
		Analysis:  analysis,
		Now:       func() time.Time { return time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC) },
	})
	return ts
}

func (ts *testServer) do(method, path, body, companyID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if companyID != "" {
		req.Header.Set(CompanyHeader, companyID)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createDemand(t *testing.T, body string) models.DemandProject {
	t.Helper()
	rec := ts.do(http.MethodPost, "/demands", body, testCompany)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p models.DemandProject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthDoesNotNeedCompany(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
}

func TestMissingCompanyIsUnauthorized(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/demands", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing company identity", decodeError(t, rec))
}

func TestPreflightIsAnsweredWithCORSHeaders(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodOptions, "/demands", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), CompanyHeader)
}

func TestCreateDemandGetsDefaultSectionsAndScore(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "  Achat de serveurs  ", "reference": ""}`)

	assert.Equal(t, "Achat de serveurs", models.Value(p.Title))
	assert.Nil(t, p.Reference)
	assert.Len(t, p.Sections, len(services.DefaultSections()))
	require.NotNil(t, p.CompletenessScore)
	assert.Equal(t, ts.demands.scores[p.ID], *p.CompletenessScore)
}

func TestCreateDemandRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title": `},
		{"unknown urgency", `{"urgencyLevel": "tomorrow"}`},
		{"invalid email", `{"contactEmail": "not-an-email"}`},
		{"section without title", `{"sections": [{"id": "s1", "title": " "}]}`},
		{"duplicate section ids", `{"sections": [{"id": "s1", "title": "A"}, {"id": "s1", "title": "B"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/demands", tt.body, testCompany)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestDemandOfAnotherCompanyIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat"}`)

	for _, path := range []string{
		"/demands/" + p.ID,
		"/demands/" + p.ID + "/completeness",
		"/demands/" + p.ID + "/annexes",
		"/demands/" + p.ID + "/export/pdf",
	} {
		rec := ts.do(http.MethodGet, path, "", "company-2")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := ts.do(http.MethodDelete, "/demands/"+p.ID, "", "company-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/demands/"+p.ID, "", testCompany)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListDemandsIsScopedByCompany(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createDemand(t, `{"title": "A"}`)
	ts.createDemand(t, `{"title": "B"}`)

	rec := ts.do(http.MethodGet, "/demands?limit=5", "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Items        []models.DemandProject `json:"items"`
		TotalRecords int                    `json:"totalRecords"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TotalRecords)

	rec = ts.do(http.MethodGet, "/demands", "", "company-2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Empty(t, result.Items)
	assert.NotNil(t, result.Items)
}

func TestUpdateAndDeleteDemand(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Ancien titre"}`)

	rec := ts.do(http.MethodPut, "/demands/"+p.ID, `{"title": "Nouveau titre", "urgencyLevel": "high"}`, testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/demands/"+p.ID, "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.DemandProject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Nouveau titre", models.Value(got.Title))
	assert.Equal(t, "high", models.Value(got.UrgencyLevel))
	assert.Len(t, got.Sections, len(p.Sections), "sections are kept when the body has none")

	rec = ts.do(http.MethodDelete, "/demands/"+p.ID, "", testCompany)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodGet, "/demands/"+p.ID, "", testCompany)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateDemandFailureKeepsSections(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat", "sections": [{"title": "Contexte", "content": "<p>Un</p>"}]}`)

	ts.demands.updateErr = errors.New("connection reset")
	rec := ts.do(http.MethodPut, "/demands/"+p.ID,
		`{"title": "Achat modifié", "sections": [{"title": "Besoin", "content": "<p>Deux</p>"}]}`, testCompany)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	ts.demands.updateErr = nil
	rec = ts.do(http.MethodGet, "/demands/"+p.ID, "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.DemandProject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Achat", models.Value(got.Title))
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "Contexte", got.Sections[0].Title)
}

func TestDeleteDemandRemovesAnnexFiles(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat"}`)

	key := storage.AnnexKey(testCompany, p.ID, "a1", "plan.pdf")
	require.NoError(t, ts.blobs.Put(context.Background(), key, []byte("plan"), "application/pdf"))
	ts.annexes.annexes[p.ID] = []models.Annex{{ID: "a1", DemandID: p.ID, FileName: "plan.pdf", StorageKey: key}}

	rec := ts.do(http.MethodDelete, "/demands/"+p.ID, "", testCompany)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := ts.blobs.Get(context.Background(), key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCompletenessWithoutSections(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{
		"title": "Achat de serveurs",
		"departmentName": "DSI",
		"contactName": "Camille Martin",
		"needType": "fournitures"
	}`)

	rec := ts.do(http.MethodPut, "/demands/"+p.ID+"/sections", `{"sections": []}`, testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/demands/"+p.ID+"/completeness", "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.CompletenessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	// required 1.0*0.5 + recommended 0/5*0.2 + no sections counts as 1.0*0.3
	assert.True(t, result.IsComplete)
	assert.Equal(t, 80, result.Percentage)
	assert.Contains(t, result.Warnings, "Aucune section de contenu définie")
	assert.Equal(t, 80, ts.demands.scores[p.ID])
}

func TestReplaceSectionsAssignsIDs(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat"}`)

	rec := ts.do(http.MethodPut, "/demands/"+p.ID+"/sections",
		`{"sections": [{"title": "Contexte", "content": "<p>Un</p>", "isRequired": true, "order": 0}]}`, testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.DemandProject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Sections, 1)
	assert.NotEmpty(t, got.Sections[0].ID)
	assert.Equal(t, "Contexte", got.Sections[0].Title)
}

func TestExportPDF(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{
		"title": "Clôture Été 2025 — Réseau d'Eau",
		"reference": "DAO/2025-07",
		"sections": [{"title": "Contexte", "content": "Texte **important**\n- point un\n- point deux", "order": 0}]
	}`)

	rec := ts.do(http.MethodGet, "/demands/"+p.ID+"/export/pdf", "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="DEMANDE_DAO2025-07_Cloture_Ete_2025_Reseau_dEau_20250314.pdf"`,
		rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestExportMarkdownAndDOCX(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat", "sections": [{"title": "Contexte", "content": "<p>Bonjour <strong>monde</strong></p>"}]}`)

	rec := ts.do(http.MethodGet, "/demands/"+p.ID+"/export/md", "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "# Achat")
	assert.Contains(t, rec.Body.String(), "**monde**")

	rec = ts.do(http.MethodGet, "/demands/"+p.ID+"/export/DOCX", "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	assert.NoError(t, err)
}

func TestExportUnknownFormat(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat"}`)
	rec := ts.do(http.MethodGet, "/demands/"+p.ID+"/export/odt", "", testCompany)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportArchiveListsMissingAnnex(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat", "reference": "R-1"}`)

	key := storage.AnnexKey(testCompany, p.ID, "a1", "plan.pdf")
	require.NoError(t, ts.blobs.Put(context.Background(), key, []byte("plan"), "application/pdf"))
	ts.annexes.annexes[p.ID] = []models.Annex{
		{ID: "a1", DemandID: p.ID, FileName: "plan.pdf", StorageKey: key},
		{ID: "a2", DemandID: p.ID, FileName: "devis.xlsx", StorageKey: "missing"},
	}

	rec := ts.do(http.MethodGet, "/demands/"+p.ID+"/export/zip", "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	names := map[string]*zip.File{}
	for _, f := range zr.File {
		names[f.Name] = f
	}
	assert.Contains(t, names, "DEMANDE_R-1_Achat_20250314.pdf")
	assert.Contains(t, names, "DEMANDE_R-1_Achat_20250314.docx")
	assert.Contains(t, names, "annexes/plan.pdf")
	require.Contains(t, names, "LISEZMOI.txt")

	rc, err := names["LISEZMOI.txt"].Open()
	require.NoError(t, err)
	defer rc.Close()
	manifest, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "devis.xlsx")
	assert.Contains(t, string(manifest), storage.ErrNotFound.Error())
}

func TestDraftWithoutAIIsUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createDemand(t, `{"title": "Achat"}`)
	rec := ts.do(http.MethodPost, "/demands/"+p.ID+"/sections/"+p.Sections[0].ID+"/draft", `{}`, testCompany)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDraftSavesGeneratedContent(t *testing.T) {
	drafter := &fakeDrafter{content: "<p>Contenu généré</p>"}
	ts := newTestServer(t, drafter)
	p := ts.createDemand(t, `{"title": "Achat"}`)
	sectionID := p.Sections[0].ID

	rec := ts.do(http.MethodPost, "/demands/"+p.ID+"/sections/"+sectionID+"/draft", `{"instructions": "court"}`, testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var section models.Section
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &section))
	assert.Equal(t, "<p>Contenu généré</p>", section.Content)

	stored, err := ts.demands.Get(context.Background(), testCompany, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>Contenu généré</p>", stored.Sections[0].Content)

	rec = ts.do(http.MethodPost, "/demands/"+p.ID+"/sections/unknown/draft", "", testCompany)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftGeneratorFailure(t *testing.T) {
	ts := newTestServer(t, &fakeDrafter{err: errors.New("quota exceeded")})
	p := ts.createDemand(t, `{"title": "Achat"}`)
	rec := ts.do(http.MethodPost, "/demands/"+p.ID+"/sections/"+p.Sections[0].ID+"/draft", "", testCompany)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	ts = newTestServer(t, &fakeDrafter{err: services.ErrEmptyDraft})
	p = ts.createDemand(t, `{"title": "Achat"}`)
	rec = ts.do(http.MethodPost, "/demands/"+p.ID+"/sections/"+p.Sections[0].ID+"/draft", "", testCompany)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodPost, "/preview", `{"content": "- **un**\n- deux"}`, testCompany)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		HTML   string                `json:"html"`
		Blocks [][]models.ParsedLine `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "<ul><li><strong>un</strong></li><li>deux</li></ul>", body.HTML)
	require.Len(t, body.Blocks, 1)
	assert.Len(t, body.Blocks[0], 2)
}

func TestAnalyzeRC(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/rc/analyze",
		strings.NewReader("Pouvoir adjudicateur : Commune de Lyon\nContact : marches@lyon.fr\n"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(CompanyHeader, testCompany)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary models.RCSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "Commune de Lyon", models.Value(summary.Buyer))
	assert.Equal(t, []string{"marches@lyon.fr"}, summary.ContactEmails)

	rec = ts.do(http.MethodPost, "/rc/analyze", `{"text": "   "}`, testCompany)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompanyProfile(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/company", "", testCompany)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPut, "/company", `{"name": ""}`, testCompany)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/company", `{"name": "Mairie de Lyon", "city": "Lyon", "siret": " "}`, testCompany)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/company", "", testCompany)
	require.Equal(t, http.StatusOK, rec.Code)
	var c models.Company
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, testCompany, c.ID)
	assert.Equal(t, "Mairie de Lyon", c.Name)
	assert.Equal(t, "Lyon", models.Value(c.City))
	assert.Nil(t, c.Siret)
}
