package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"appeloffres/api/internal/config"
	"appeloffres/api/internal/models"
	"appeloffres/api/internal/repositories"
	"appeloffres/api/internal/services"
	"appeloffres/api/internal/storage"
)

var allFormats = []string{services.FormatPDF, services.FormatDOCX, services.FormatMarkdown, services.FormatZIP}

func main() {
	companyID := flag.String("company", "", "Company owning the demand (required)")
	demandID := flag.String("demand", "", "Demand id (required)")
	format := flag.String("format", "all", "Export format: pdf, docx, md, zip or all")
	outDir := flag.String("out", ".", "Output directory")
	flag.Parse()

	if *companyID == "" || *demandID == "" {
		flag.Usage()
		os.Exit(2)
	}

	formats := allFormats
	if f := strings.ToLower(strings.TrimSpace(*format)); f != "all" {
		formats = []string{f}
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer pool.Close()

	p, err := repositories.NewDemandRepository(pool).Get(ctx, *companyID, *demandID)
	if err != nil {
		log.Fatalf("Failed to load demand %s: %v", *demandID, err)
	}

	company, err := repositories.NewCompanyRepository(pool).Get(ctx, *companyID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		log.Fatal("Failed to load company:", err)
	}

	var annexes []models.Annex
	var blobs services.BlobFetcher
	if slices.Contains(formats, services.FormatZIP) {
		annexes, err = repositories.NewAnnexRepository(pool).ListByDemand(ctx, *companyID, p.ID)
		if err != nil {
			log.Fatal("Failed to list annexes:", err)
		}
		if cfg.Storage.Enabled {
			store, err := storage.NewS3Store(storage.S3Config{
				Endpoint:  cfg.Storage.Endpoint,
				Region:    cfg.Storage.Region,
				AccessKey: cfg.Storage.AccessKey,
				SecretKey: cfg.Storage.SecretKey,
				Bucket:    cfg.Storage.Bucket,
				UseSSL:    cfg.Storage.UseSSL,
			})
			if err != nil {
				log.Fatal("Failed to initialize object storage:", err)
			}
			blobs = store
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal("Failed to create output directory:", err)
	}

	now := time.Now()
	doc := services.NewExportDocument(*p, company, now)
	for _, f := range formats {
		filename := services.ExportFilenameFor(*p, f, now)
		data, err := services.Render(ctx, f, doc, strings.TrimSuffix(filename, "."+f), annexes, blobs)
		if err != nil {
			log.Fatalf("Failed to export %s: %v", f, err)
		}
		path := filepath.Join(*outDir, filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		log.Printf("✅ Wrote %s (%d bytes)", path, len(data))
	}
}
