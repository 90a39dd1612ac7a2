package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresName  = "statuspage"
)

// Database is a disposable PostgreSQL server for one test binary.
type Database struct {
	container *postgres.PostgresContainer
	// URL is a pgx and golang-migrate compatible connection string.
	URL string
}

// StartDatabase runs postgresImage and waits until it accepts connections.
// The server logs readiness twice: once for the init run, once for real.
func StartDatabase(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(postgresName),
		postgres.WithUsername(postgresName),
		postgres.WithPassword(postgresName),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", postgresImage, err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}
	return &Database{container: container, URL: url}, nil
}

// Close stops and removes the container.
func (d *Database) Close(ctx context.Context) error {
	return d.container.Terminate(ctx)
}
