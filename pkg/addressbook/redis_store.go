package addressbook

import (
	"context"
	"encoding/json"

	redisclient "github.com/StricklySoft/addressbook/pkg/clients/redis"
	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// contactKeyPrefix namespaces the per-owner contact hashes in Redis.
const contactKeyPrefix = "addressbook:contacts:"

// RedisStore is a [ContactStore] backed by Redis. Each owner's collection
// is a single hash keyed by owner id; each field is a contact user id
// holding the contact's JSON document. HSET on an existing field replaces
// it, which gives Put its overwrite semantics for free.
type RedisStore struct {
	client *redisclient.Client
}

// NewRedisStore creates a Redis-backed contact store on an already
// connected client.
func NewRedisStore(client *redisclient.Client) (*RedisStore, error) {
	if client == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"addressbook: redis client must not be nil")
	}
	return &RedisStore{client: client}, nil
}

// contactKey returns the Redis hash key holding ownerID's collection.
func contactKey(ownerID string) string {
	return contactKeyPrefix + ownerID
}

// Put stores the contact in ownerID's hash, replacing any existing field
// with the same contact user id.
func (s *RedisStore) Put(ctx context.Context, ownerID string, contact Contact) error {
	if ownerID == "" {
		return sserr.New(sserr.CodeValidationRequired, "addressbook: owner id must not be empty")
	}
	if err := contact.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(contact)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternal, "addressbook: failed to encode contact")
	}

	if _, err := s.client.HSet(ctx, contactKey(ownerID), contact.UserID, payload); err != nil {
		return err
	}
	return nil
}

// List returns every contact in ownerID's hash. A missing hash is an
// empty collection, not an error.
func (s *RedisStore) List(ctx context.Context, ownerID string) ([]Contact, error) {
	if ownerID == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "addressbook: owner id must not be empty")
	}

	fields, err := s.client.HGetAll(ctx, contactKey(ownerID))
	if err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(fields))
	for contactID, payload := range fields {
		var contact Contact
		if err := json.Unmarshal([]byte(payload), &contact); err != nil {
			return nil, sserr.Wrapf(err, sserr.CodeInternalDatabase,
				"addressbook: corrupt contact record %q", contactID)
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// Health verifies connectivity to Redis.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}
