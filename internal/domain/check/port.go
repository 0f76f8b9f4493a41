package check

import "context"

// Query selects one owner's checks. Results are always ordered by order_index ascending.
type Query struct {
	OwnerID string
}

type Subscription interface {
	Close() error
}

// Store is the remote authoritative document store.
type Store interface {
	Authenticate(ctx context.Context, ownerID, secret string) error
	Subscribe(ctx context.Context, q Query, deliver func([]Check)) (Subscription, error)
	QueryOnce(ctx context.Context, q Query) ([]Check, error)
	CreateOne(ctx context.Context, c Check) (Check, error)
	UpdateOne(ctx context.Context, id string, p Patch) error
	BatchUpdate(ctx context.Context, updates []Update) error
	// DeleteOne removes the check and maintains owner-level aggregate counters.
	DeleteOne(ctx context.Context, id string) error
}

// Runner executes a single check on demand.
type Runner interface {
	Run(ctx context.Context, c Check) (Result, error)
}

// FolderStore keeps folders that exist without any check in them.
type FolderStore interface {
	ListDeclared(ctx context.Context, ownerID string) ([]string, error)
	ReplaceDeclared(ctx context.Context, ownerID string, paths []string) error
}

type StatusEvents interface {
	PublishStatusChanged(ctx context.Context, c Check, old, new Status) error
}
