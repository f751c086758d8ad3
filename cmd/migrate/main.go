package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Applies every .sql file under migrations/ in lexical order. Files use
// IF NOT EXISTS guards, so re-running is safe.
func main() {
	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Printf("Failed to connect to DB: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	entries, err := os.ReadDir("migrations")
	if err != nil {
		fmt.Printf("Failed to read migrations directory: %v\n", err)
		os.Exit(1)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		sqlFile, err := os.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			fmt.Printf("Failed to read %s: %v\n", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(sqlFile)); err != nil {
			fmt.Printf("Migration %s failed: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("Applied %s\n", name)
	}
	fmt.Println("Migrations successful.")
}
