package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"appeloffres/api/internal/config"
	"appeloffres/api/internal/repositories"
	"appeloffres/api/internal/services"
)

const (
	// Advisory lock key for backfill job
	backfillLockKey = 2
	defaultWorkers  = 3
	// Default rate limit: demands per second
	defaultRateLimit = 20.0
	maxRetries       = 3
	initialBackoff   = 1 * time.Second
)

type backfillStats struct {
	Total     int
	Processed int
	Updated   int
	Unchanged int
	Errors    int
	mu        sync.Mutex
}

func (s *backfillStats) IncrementProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
}

// IncrementUpdated returns the new number of updated demands.
func (s *backfillStats) IncrementUpdated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updated++
	return s.Updated
}

func (s *backfillStats) IncrementUnchanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Unchanged++
}

func (s *backfillStats) IncrementErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors++
}

type record struct {
	ID        string
	CompanyID string
	Score     *int
}

func main() {
	limit := flag.Int("limit", 0, "Maximum number of demands to process (0 = no limit)")
	companyID := flag.String("company", "", "Only process demands of this company")
	all := flag.Bool("all", false, "Recompute every demand, not only those without a score")
	dryRun := flag.Bool("dry-run", false, "Dry run mode: log what would be updated without making changes")
	workers := flag.Int("workers", defaultWorkers, "Number of worker goroutines")
	flag.Parse()

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

	// pg_try_advisory_lock is session-scoped: hold one connection for the whole run.
	lockConn, err := pool.Acquire(ctx)
	if err != nil {
		log.Fatal("Failed to acquire connection:", err)
	}
	defer lockConn.Release()

	var lockAcquired bool
	err = lockConn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", backfillLockKey).Scan(&lockAcquired)
	if err != nil {
		log.Fatal("Failed to check advisory lock:", err)
	}
	if !lockAcquired {
		log.Println("Another backfill job is already running. Exiting gracefully.")
		return
	}
	defer func() {
		if _, unlockErr := lockConn.Exec(ctx, "SELECT pg_advisory_unlock($1)", backfillLockKey); unlockErr != nil {
			log.Printf("Warning: Failed to release advisory lock: %v", unlockErr)
		}
	}()

	log.Println("✅ Acquired advisory lock, starting backfill...")
	if *dryRun {
		log.Println("🔍 DRY RUN MODE: No changes will be made")
	}

	var conditions []string
	var args []any
	if !*all {
		conditions = append(conditions, "completeness_score IS NULL")
	}
	if *companyID != "" {
		args = append(args, *companyID)
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", len(args)))
	}
	whereSQL := ""
	if len(conditions) > 0 {
		whereSQL = "WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM demand_projects "+whereSQL, args...).Scan(&totalCount); err != nil {
		log.Fatalf("Failed to count demands: %v", err)
	}
	if totalCount == 0 {
		log.Println("No demands found matching criteria")
		return
	}
	log.Printf("📊 Found %d demands to process", totalCount)
	if *limit > 0 && *limit < totalCount {
		log.Printf("⚠️  Limiting to %d demands", *limit)
		totalCount = *limit
	}

	if *workers < 1 {
		*workers = 1
	}
	if *workers > 10 {
		log.Printf("⚠️  Limiting workers to 10 (requested: %d)", *workers)
		*workers = 10
	}

	rateLimit := defaultRateLimit
	if rateStr := os.Getenv("BACKFILL_RATE_LIMIT"); rateStr != "" {
		if r, err := strconv.ParseFloat(rateStr, 64); err == nil && r > 0 {
			rateLimit = r
		}
	}
	limiter := services.NewRateLimiter(rateLimit, rateLimit)

	analysis, err := services.NewAnalysisCache(cfg.AnalysisCacheSize)
	if err != nil {
		log.Fatal("Failed to create analysis cache:", err)
	}
	demands := repositories.NewDemandRepository(pool)
	stats := &backfillStats{Total: totalCount}

	query := "SELECT id, company_id, completeness_score FROM demand_projects " + whereSQL + " ORDER BY id"
	if *limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", *limit)
	}
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		log.Fatalf("Failed to query demands: %v", err)
	}
	defer rows.Close()

	workChan := make(chan record, *workers*2)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for rec := range workChan {
				processRecord(ctx, rec, demands, analysis, limiter, stats, *dryRun, workerID)
			}
		}(i)
	}

	// Rows are drained before the workers query, so the pool needs one spare connection at most.
	var pending []record
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.ID, &rec.CompanyID, &rec.Score); err != nil {
			log.Printf("Error scanning row: %v", err)
			stats.IncrementErrors()
			continue
		}
		pending = append(pending, rec)
	}
	if err := rows.Err(); err != nil {
		log.Printf("Error iterating rows: %v", err)
	}
	rows.Close()

	for _, rec := range pending {
		workChan <- rec
	}
	close(workChan)
	wg.Wait()

	log.Println("✅ Backfill completed")
	log.Printf("📊 Statistics:")
	log.Printf("   Total: %d", stats.Total)
	log.Printf("   Processed: %d", stats.Processed)
	log.Printf("   Updated: %d", stats.Updated)
	log.Printf("   Unchanged: %d", stats.Unchanged)
	log.Printf("   Errors: %d", stats.Errors)

	if stats.Errors > 0 {
		log.Printf("⚠️  Warning: %d errors occurred during backfill", stats.Errors)
		os.Exit(1)
	}
}

func processRecord(ctx context.Context, rec record, demands *repositories.DemandRepository, analysis *services.AnalysisCache, limiter *services.RateLimiter, stats *backfillStats, dryRun bool, workerID int) {
	stats.IncrementProcessed()

	if err := limiter.Wait(ctx); err != nil {
		stats.IncrementErrors()
		return
	}

	var err error
	var changed bool
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[Worker %d] Retry %d/%d for demand %s after %v", workerID, attempt, maxRetries, rec.ID, backoff)
			time.Sleep(backoff)
			backoff *= 2
		}

		changed, err = recompute(ctx, rec, demands, analysis, dryRun)
		if err == nil || !isRetryableError(err) {
			break
		}
	}

	if err != nil {
		log.Printf("[Worker %d] Failed to process demand %s after retries: %v", workerID, rec.ID, err)
		stats.IncrementErrors()
		return
	}
	if !changed {
		stats.IncrementUnchanged()
		return
	}

	if updated := stats.IncrementUpdated(); updated%100 == 0 {
		log.Printf("✅ Updated %d demands...", updated)
	}
}

// recompute reports whether the stored score differs from the fresh one.
func recompute(ctx context.Context, rec record, demands *repositories.DemandRepository, analysis *services.AnalysisCache, dryRun bool) (bool, error) {
	p, err := demands.Get(ctx, rec.CompanyID, rec.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Deleted since the scan.
			return false, nil
		}
		return false, fmt.Errorf("failed to load demand: %w", err)
	}

	score := analysis.Check(*p).Percentage
	if rec.Score != nil && *rec.Score == score {
		return false, nil
	}

	if dryRun {
		log.Printf("[DRY RUN] Would set completeness of demand %s to %d%%", rec.ID, score)
		return true, nil
	}
	if err := demands.SaveCompleteness(ctx, rec.CompanyID, rec.ID, score); err != nil {
		return false, fmt.Errorf("failed to save completeness: %w", err)
	}
	return true, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "deadlock") || strings.Contains(errStr, "too many clients")
}
