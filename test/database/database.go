// Package database provides a shared PostgreSQL test harness backed by
// testcontainers. One container serves an entire test binary; callers get a
// migrated storage client with truncated tables.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentfleet/maestro/pkg/storage"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	once      sync.Once
	sharedDB  *sql.DB
	sharedErr error
)

// NewTestStore returns a migrated store over a dedicated PostgreSQL
// container, with clean tables. Skipped in -short mode.
func NewTestStore(t *testing.T) *storage.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}

	once.Do(startContainer)
	if sharedErr != nil {
		t.Skipf("postgres container unavailable: %v", sharedErr)
	}

	client, err := storage.NewClientFromDB(sharedDB)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if _, err := sharedDB.Exec(`TRUNCATE agents, tasks`); err != nil {
		t.Fatalf("failed to truncate test tables: %v", err)
	}

	return storage.NewStore(client)
}

func startContainer() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("maestro_test"),
		postgres.WithUsername("maestro"),
		postgres.WithPassword("maestro-test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		sharedErr = fmt.Errorf("failed to start postgres container: %w", err)
		return
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		sharedErr = fmt.Errorf("failed to build connection string: %w", err)
		return
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		sharedErr = fmt.Errorf("failed to open test database: %w", err)
		return
	}
	if err := db.PingContext(ctx); err != nil {
		sharedErr = fmt.Errorf("failed to ping test database: %w", err)
		return
	}
	sharedDB = db
}
