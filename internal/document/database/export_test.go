package database

import "context"

// DBPool is exported for tests to be able to mock the connection pool.
type DBPool = dbPool

// WithNewPool overrides the function used to create the connection pool.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) Options {
	return func(o *options) {
		o.newPool = newPool
	}
}
