package attendance

import (
	"sort"
	"strings"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
)

// Record is the roll call of one class on one date. A missing record means
// attendance was never logged, not that the class did not happen.
type Record struct {
	ID      string
	ClassID string
	Date    time.Time

	// Present holds the ids of the students who attended. Ids are not checked
	// against the student list.
	Present map[string]struct{}

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecordParams holds the input for a roll call.
type NewRecordParams struct {
	ID         string
	ClassID    string
	Date       time.Time
	PresentIDs []string
}

// NewRecord validates and creates a record.
func NewRecord(params NewRecordParams) (*Record, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, shared.NewDomainError("attendance", "TakeRollCall", shared.ErrInvalidID, "record id is required")
	}
	if strings.TrimSpace(params.ClassID) == "" {
		return nil, shared.NewDomainError("attendance", "TakeRollCall", shared.ErrInvalidID, "class id is required")
	}
	if params.Date.IsZero() {
		return nil, shared.ErrMissingRecordDate
	}

	now := time.Now().UTC()
	r := &Record{
		ID:        params.ID,
		ClassID:   params.ClassID,
		Date:      params.Date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.setPresent(params.PresentIDs)
	return r, nil
}

func (r *Record) setPresent(ids []string) {
	r.Present = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			r.Present[id] = struct{}{}
		}
	}
}

// WasPresent reports whether the student attended.
func (r *Record) WasPresent(studentID string) bool {
	_, ok := r.Present[studentID]
	return ok
}

// PresentIDs returns the attendees in sorted order.
func (r *Record) PresentIDs() []string {
	ids := make([]string, 0, len(r.Present))
	for id := range r.Present {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReplacePresent overwrites the attendee list. Used when roll call is taken
// again for the same class and date.
func (r *Record) ReplacePresent(ids []string) {
	r.setPresent(ids)
	r.UpdatedAt = time.Now().UTC()
}

// SameSession reports whether both records cover the same class and date.
func (r *Record) SameSession(other *Record) bool {
	return r.ClassID == other.ClassID && sameDay(r.Date, other.Date)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
