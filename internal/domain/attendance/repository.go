package attendance

import (
	"context"
	"time"
)

// ClassRepository defines storage operations for dance classes.
type ClassRepository interface {
	// Create stores a new class.
	Create(ctx context.Context, class *DanceClass) error

	// GetByID returns a class by id.
	// Returns shared.ErrClassNotFound when missing.
	GetByID(ctx context.Context, id string) (*DanceClass, error)

	// Update overwrites a class.
	Update(ctx context.Context, class *DanceClass) error

	// List returns every class.
	List(ctx context.Context) ([]*DanceClass, error)
}

// RecordRepository defines storage operations for roll calls.
type RecordRepository interface {
	// Upsert stores a record, replacing the present list when a record for
	// the same class and date already exists. The stored record is returned.
	Upsert(ctx context.Context, record *Record) (*Record, error)

	// GetByClassAndDate returns the roll call of one session.
	GetByClassAndDate(ctx context.Context, classID string, date time.Time) (*Record, error)

	// List returns the full record snapshot.
	List(ctx context.Context) ([]Record, error)

	// ListByClasses returns the records of the given classes.
	ListByClasses(ctx context.Context, classIDs []string) ([]Record, error)
}
