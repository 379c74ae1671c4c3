package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// connectRetries is how many extra attempts are made before giving up on
// the test database.
const connectRetries = 3

var DB *pgxpool.Pool

// Connect initializes the connection pool
func Connect(dsn string) (*pgxpool.Pool, error) {
	var (
		pool *pgxpool.Pool
		err  error
	)
	for try := 0; try <= connectRetries; try++ {
		pool, err = connect(dsn)
		if err == nil {
			break
		}
		log.Warnf("pg connection attempt %d failed: %v", try+1, err)
		if try < connectRetries {
			time.Sleep(time.Second)
		}
	}
	if err != nil {
		return nil, err
	}

	DB = pool

	return pool, nil
}

func connect(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	// Try pinging to make sure it's valid
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// ClosePool is for graceful shutdown
func ClosePool() {
	if DB != nil {
		DB.Close()
	}
}
