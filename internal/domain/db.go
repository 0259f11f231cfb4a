package domain

import "context"

// Database is the lifecycle of the backing store: schema setup at boot,
// liveness for health checks, release at shutdown.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
