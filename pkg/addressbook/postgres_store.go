package addressbook

import (
	"context"

	postgresclient "github.com/StricklySoft/addressbook/pkg/clients/postgres"
	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

const (
	// createContactsTableSQL creates the contacts table if it does not
	// exist. The composite primary key (owner_id, contact_id) is what the
	// upsert conflicts on.
	createContactsTableSQL = `
		CREATE TABLE IF NOT EXISTS contacts (
			owner_id   TEXT        NOT NULL,
			contact_id TEXT        NOT NULL,
			email      TEXT        NOT NULL,
			alias      TEXT        NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (owner_id, contact_id)
		)`

	upsertContactSQL = `
		INSERT INTO contacts (owner_id, contact_id, email, alias, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (owner_id, contact_id)
		DO UPDATE SET email = EXCLUDED.email, alias = EXCLUDED.alias, updated_at = now()`

	listContactsSQL = `
		SELECT contact_id, email, alias FROM contacts WHERE owner_id = $1`
)

// PostgresStore is a [ContactStore] backed by Postgres. One row per
// (owner, contact); Put is an INSERT ... ON CONFLICT DO UPDATE so that
// re-adding a contact replaces the existing row atomically.
type PostgresStore struct {
	client *postgresclient.Client
}

// NewPostgresStore creates a Postgres-backed contact store on an already
// connected client.
func NewPostgresStore(client *postgresclient.Client) (*PostgresStore, error) {
	if client == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"addressbook: postgres client must not be nil")
	}
	return &PostgresStore{client: client}, nil
}

// EnsureSchema creates the contacts table if it does not exist. Called
// once at startup, before the store serves requests.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.client.Exec(ctx, createContactsTableSQL)
	return err
}

// Put upserts the contact into ownerID's collection.
func (s *PostgresStore) Put(ctx context.Context, ownerID string, contact Contact) error {
	if ownerID == "" {
		return sserr.New(sserr.CodeValidationRequired, "addressbook: owner id must not be empty")
	}
	if err := contact.Validate(); err != nil {
		return err
	}

	_, err := s.client.Exec(ctx, upsertContactSQL, ownerID, contact.UserID, contact.Email, contact.Alias)
	return err
}

// List returns every contact row for ownerID. An owner with no rows gets
// an empty slice.
func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]Contact, error) {
	if ownerID == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "addressbook: owner id must not be empty")
	}

	rows, err := s.client.Query(ctx, listContactsSQL, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		var contact Contact
		if err := rows.Scan(&contact.UserID, &contact.Email, &contact.Alias); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
				"addressbook: failed to scan contact row")
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase,
			"addressbook: failed to read contact rows")
	}
	return contacts, nil
}

// Health verifies connectivity to Postgres.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}
