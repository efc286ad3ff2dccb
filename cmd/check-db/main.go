package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer pool.Close()

	counts := []struct {
		label string
		table string
	}{
		{"Companies", "companies"},
		{"Demands", "demand_projects"},
		{"Sections", "demand_sections"},
		{"Annexes", "demand_annexes"},
	}

	fmt.Printf("📊 Database Statistics:\n")
	for _, c := range counts {
		var n int
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(&n); err != nil {
			log.Fatalf("Failed to count %s: %v", c.table, err)
		}
		fmt.Printf("   %s: %d\n", c.label, n)
	}

	var unscored int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM demand_projects WHERE completeness_score IS NULL").Scan(&unscored)
	if err != nil {
		log.Fatal("Failed to count unscored demands:", err)
	}
	fmt.Printf("   Without completeness score: %d\n", unscored)

	rows, err := pool.Query(ctx, `
		SELECT id, company_id, COALESCE(title, ''), completeness_score, updated_at
		FROM demand_projects
		ORDER BY updated_at DESC
		LIMIT 5
	`)
	if err != nil {
		log.Fatal("Failed to query:", err)
	}
	defer rows.Close()

	fmt.Printf("\n📋 Recent demands:\n")
	for rows.Next() {
		var id, companyID, title string
		var score *int
		var updatedAt time.Time
		if err := rows.Scan(&id, &companyID, &title, &score, &updatedAt); err != nil {
			continue
		}
		scoreText := "-"
		if score != nil {
			scoreText = fmt.Sprintf("%d%%", *score)
		}
		fmt.Printf("   %s [%s] %s (complétude: %s, modifié: %s)\n",
			shortID(id), companyID, title, scoreText, updatedAt.Format("2006-01-02 15:04"))
	}
	if err := rows.Err(); err != nil {
		log.Fatal("Error iterating demands:", err)
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
