package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"site-analytics/internal/domain"
	"site-analytics/internal/repository"
	"site-analytics/internal/service"
	"site-analytics/pkg/database"
)

const usage = "Usage: go run ./cmd/migrate [up|drop|seed|status|sweep]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		log.Fatal("DATABASE_PATH environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.OpenSQLiteDB(ctx, dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := run(ctx, db, os.Args[1], os.Getenv("ANALYTICS_SALT")); err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, db *database.SQLiteDB, command, salt string) error {
	switch command {
	case "up":
		if err := database.ApplyMigrations(ctx, db.DB); err != nil {
			return err
		}
		fmt.Println("✅ Migrations applied successfully")

	case "drop":
		if err := database.RevertMigrations(ctx, db.DB); err != nil {
			return err
		}
		fmt.Println("✅ All tables dropped successfully")

	case "status":
		migrations, err := database.MigrationStatus(ctx, db.DB)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			state := "pending"
			if m.Applied {
				state = "applied " + m.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-32s %s\n", m.Name, state)
		}

	case "seed":
		if err := database.ApplyMigrations(ctx, db.DB); err != nil {
			return err
		}
		visits, events, err := seedData(ctx, db, salt, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Printf("✅ Seeded %d visits and %d events\n", visits, events)

	case "sweep":
		removed, err := repository.NewCacheRepository(db).ClearExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Removed %d expired cache entries\n", removed)

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	return nil
}

const seedDays = 30

var seedPaths = []string{"/", "/blog", "/blog/hello-world", "/about", "/projects"}

var seedReferers = []string{"", "https://www.google.com/", "https://news.ycombinator.com/", "https://x.com/", ""}

var seedCountries = []string{"IT", "US", "DE", "GB", "IT", "FR"}

// seedData writes 30 days of deterministic sample traffic for the dashboard
func seedData(ctx context.Context, db *database.SQLiteDB, salt string, now time.Time) (int, int, error) {
	if salt == "" {
		salt = "seed"
	}
	hasher, err := service.NewVisitorHasher(salt)
	if err != nil {
		return 0, 0, err
	}

	visitRepo := repository.NewVisitRepository(db)
	eventRepo := repository.NewEventRepository(db)

	var visits int
	var events []domain.EventRecord

	for day := 0; day < seedDays; day++ {
		date := now.AddDate(0, 0, -day)
		for i := 0; i < 3+day%4; i++ {
			ip := fmt.Sprintf("198.51.100.%d", (day*7+i)%250+1)
			visitorHash := hasher.Hash(ip, "seed-agent")
			createdAt := date.Add(-time.Duration(i) * time.Hour)
			path := seedPaths[(day+i)%len(seedPaths)]

			if err := visitRepo.Create(ctx, &domain.VisitRecord{
				Path:        path,
				VisitorHash: visitorHash,
				Referer:     seedReferers[i%len(seedReferers)],
				UserAgent:   "seed-agent",
				Country:     seedCountries[(day+i)%len(seedCountries)],
				CreatedAt:   createdAt,
			}); err != nil {
				return visits, 0, fmt.Errorf("failed to seed visit: %w", err)
			}
			visits++

			duration := int64(15000 + 5000*i)
			events = append(events,
				domain.EventRecord{
					Type:        domain.EventTypeClick,
					Path:        path,
					VisitorHash: visitorHash,
					ElementTag:  "a",
					ElementID:   "nav-blog",
					ElementText: "Blog",
					Href:        "/blog",
					CreatedAt:   createdAt.Add(10 * time.Second),
				},
				domain.EventRecord{
					Type:        domain.EventTypeTimeOnPage,
					Path:        path,
					VisitorHash: visitorHash,
					Duration:    &duration,
					CreatedAt:   createdAt.Add(time.Minute),
				},
			)
		}
	}

	if err := eventRepo.InsertBatch(ctx, events); err != nil {
		return visits, 0, fmt.Errorf("failed to seed events: %w", err)
	}

	return visits, len(events), nil
}
