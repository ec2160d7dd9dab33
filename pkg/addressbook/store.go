package addressbook

import (
	"context"
)

// ContactStore persists per-owner contact collections. Implementations
// must treat Put as an overwrite keyed by (ownerID, contact.UserID) so
// that re-adding a contact is idempotent, and must return an empty slice,
// not nil or an error, when an owner has no contacts yet.
//
// Implementations are safe for concurrent use; concurrent writes to the
// same key resolve last-write-wins.
type ContactStore interface {
	// Put stores the contact in ownerID's collection, replacing any
	// existing entry with the same contact UserID.
	Put(ctx context.Context, ownerID string, contact Contact) error

	// List returns every contact in ownerID's collection, in no
	// particular order.
	List(ctx context.Context, ownerID string) ([]Contact, error)

	// Health verifies connectivity to the backing store.
	Health(ctx context.Context) error
}
