package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

var schema = []struct {
	name string
	sql  string
}{
	{"pg_trgm extension", `CREATE EXTENSION IF NOT EXISTS pg_trgm;`},
	{"companies table", `
		CREATE TABLE IF NOT EXISTS companies (
			id VARCHAR PRIMARY KEY,
			name TEXT NOT NULL,
			siret VARCHAR,
			address TEXT,
			city VARCHAR,
			email VARCHAR,
			phone VARCHAR,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`},
	{"demand_projects table", `
		CREATE TABLE IF NOT EXISTS demand_projects (
			id VARCHAR PRIMARY KEY,
			company_id VARCHAR NOT NULL,
			title TEXT,
			reference VARCHAR,
			department_name TEXT,
			contact_name TEXT,
			contact_email VARCHAR,
			need_type VARCHAR,
			urgency_level VARCHAR,
			budget_range VARCHAR,
			desired_delivery_date VARCHAR,
			description TEXT,
			completeness_score INTEGER,
			completeness_checked_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`},
	{"demand_projects company index", `CREATE INDEX IF NOT EXISTS idx_demand_projects_company_updated ON demand_projects(company_id, updated_at DESC);`},
	{"demand_projects title trigram index", `CREATE INDEX IF NOT EXISTS idx_demand_projects_title_trgm ON demand_projects USING GIN (title gin_trgm_ops);`},
	{"demand_sections table", `
		CREATE TABLE IF NOT EXISTS demand_sections (
			demand_id VARCHAR NOT NULL REFERENCES demand_projects(id) ON DELETE CASCADE,
			id VARCHAR NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT false,
			is_required BOOLEAN NOT NULL DEFAULT false,
			sort_order INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (demand_id, id)
		);
	`},
	{"demand_sections order index", `CREATE INDEX IF NOT EXISTS idx_demand_sections_order ON demand_sections(demand_id, sort_order);`},
	{"demand_annexes table", `
		CREATE TABLE IF NOT EXISTS demand_annexes (
			id VARCHAR PRIMARY KEY,
			demand_id VARCHAR NOT NULL REFERENCES demand_projects(id) ON DELETE CASCADE,
			file_name TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			content_type VARCHAR NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL DEFAULT 0,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`},
	{"demand_annexes demand index", `CREATE INDEX IF NOT EXISTS idx_demand_annexes_demand_id ON demand_annexes(demand_id, uploaded_at);`},
}

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

	for _, step := range schema {
		if _, err := pool.Exec(ctx, step.sql); err != nil {
			log.Fatalf("Failed to create %s: %v", step.name, err)
		}
		log.Printf("✅ Created %s", step.name)
	}

	log.Println("✅ Database setup complete!")
}
