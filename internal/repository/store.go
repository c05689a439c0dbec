package repository

import "context"

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Blogs() BlogRepository
}

// TxFunc runs inside a transaction. It must only use the repositories it is
// given, and the context it receives, for the writes to be atomic.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is a storage backend.
type Store interface {
	Repositories
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
	Close() error
}
