package database

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"coedit/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool and verifies it with a ping, retrying
// with exponential backoff in case of temporary DNS/network blips.
func Connect() (*sql.DB, error) {
	dbUser := strings.TrimSpace(os.Getenv("DB_USER"))
	dbPass := strings.TrimSpace(os.Getenv("DB_PASSWORD"))
	dbHost := strings.TrimSpace(os.Getenv("DB_HOST"))
	dbPort := strings.TrimSpace(os.Getenv("DB_PORT"))
	dbName := strings.TrimSpace(os.Getenv("DB_NAME"))
	sslMode := strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	if sslMode == "" {
		sslMode = "require"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	err = backoff.Retry(func() error {
		if err := db.Ping(); err != nil {
			logger.Sugar.Infof("Database connection failed, retrying... (%v)", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database after retries: %w", err)
	}

	logger.Sugar.Info("Successfully connected to the database")
	return db, nil
}
