package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"appeloffres/api/internal/models"
	"appeloffres/api/internal/repositories"
	"appeloffres/api/internal/services"
)

// DemandStore persists demand projects. Implemented by repositories.DemandRepository.
type DemandStore interface {
	List(ctx context.Context, companyID string, params repositories.ListParams) (*repositories.ListResult, error)
	Get(ctx context.Context, companyID, id string) (*models.DemandProject, error)
	Create(ctx context.Context, companyID string, p *models.DemandProject) error
	Update(ctx context.Context, companyID string, p *models.DemandProject) error
	UpdateWithSections(ctx context.Context, companyID string, p *models.DemandProject) error
	Delete(ctx context.Context, companyID, id string) error
	ReplaceSections(ctx context.Context, companyID, demandID string, sections []models.Section) error
	UpdateSectionContent(ctx context.Context, companyID, demandID, sectionID, content string) error
	SaveCompleteness(ctx context.Context, companyID, demandID string, score int) error
}

type AnnexStore interface {
	ListByDemand(ctx context.Context, companyID, demandID string) ([]models.Annex, error)
}

type CompanyStore interface {
	Get(ctx context.Context, id string) (*models.Company, error)
	Upsert(ctx context.Context, c *models.Company) error
}

// BlobStore reads and removes annex files. Implemented by storage.S3Store and storage.MemoryStore.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// SectionDrafter writes section content with AI. Implemented by services.Drafter.
type SectionDrafter interface {
	DraftSection(ctx context.Context, p models.DemandProject, sectionID, instructions string, rc *models.RCSummary) (models.Section, error)
}

// Deps wires the router. Drafter and Blobs may be nil: drafting then answers 503 and archives
// list every annex as missing.
type Deps struct {
	Logger    *slog.Logger
	Demands   DemandStore
	Annexes   AnnexStore
	Companies CompanyStore
	Blobs     BlobStore
	Drafter   SectionDrafter
	Analysis  *services.AnalysisCache
	Now       func() time.Time
}

// NewRouter builds the HTTP API.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	demands := NewDemandsHandler(deps.Demands, deps.Annexes, deps.Blobs, deps.Analysis)
	drafts := NewDraftsHandler(deps.Demands, deps.Drafter, deps.Analysis)
	exports := NewExportsHandler(deps.Demands, deps.Annexes, deps.Companies, blobFetcher(deps.Blobs), now)
	companies := NewCompanyHandler(deps.Companies)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireCompany)

		r.Get("/company", companies.HandleGet)
		r.Put("/company", companies.HandlePut)

		r.Route("/demands", func(r chi.Router) {
			r.Get("/", demands.HandleList)
			r.Post("/", demands.HandleCreate)
			r.Route("/{demandID}", func(r chi.Router) {
				r.Get("/", demands.HandleGet)
				r.Put("/", demands.HandleUpdate)
				r.Delete("/", demands.HandleDelete)
				r.Put("/sections", demands.HandleReplaceSections)
				r.Post("/sections/{sectionID}/draft", drafts.HandleDraft)
				r.Get("/completeness", demands.HandleCompleteness)
				r.Get("/annexes", demands.HandleAnnexes)
				r.Get("/export/{format}", exports.HandleExport)
			})
		})

		r.Post("/preview", HandlePreview)
		r.Post("/rc/analyze", HandleAnalyzeRC)
	})

	return r
}

// blobFetcher keeps a missing store a nil interface for the export archive.
func blobFetcher(b BlobStore) services.BlobFetcher {
	if b == nil {
		return nil
	}
	return b
}
