package addressbook

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/addressbook/pkg/clients/directory"
	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/addressbook/pkg/addressbook"

// DirectoryLookup resolves directory records by email. Satisfied by
// [*directory.Client] and by stubs in tests.
type DirectoryLookup interface {
	LookupByEmail(ctx context.Context, email string) (*directory.User, error)
}

// Resolver implements the add-contact workflow: resolve the email against
// the directory, then persist the resulting contact in the owner's
// collection. Reads go straight to the store.
type Resolver struct {
	directory DirectoryLookup
	store     ContactStore
	tracer    trace.Tracer
}

// NewResolver creates a Resolver over the given directory and store.
func NewResolver(dir DirectoryLookup, store ContactStore) (*Resolver, error) {
	if dir == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"addressbook: directory lookup must not be nil")
	}
	if store == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"addressbook: contact store must not be nil")
	}
	return &Resolver{
		directory: dir,
		store:     store,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// ResolveAndStore resolves email against the directory and stores the
// resulting contact in ownerID's collection, returning the contact as
// persisted. Re-adding an email overwrites the existing entry for the
// same directory user.
//
// Error codes:
//   - [sserr.CodeValidationRequired] if email or ownerID is empty
//   - [sserr.CodeNotFoundUser] if no user is registered under email
//   - directory availability and timeout codes pass through unchanged
//   - [sserr.CodeInternalDatabase] or [sserr.CodeTimeoutDatabase] if the
//     store write fails
func (r *Resolver) ResolveAndStore(ctx context.Context, ownerID, email string) (*Contact, error) {
	ctx, span := r.startSpan(ctx, "ResolveAndStore", ownerID)
	var err error
	defer func() { finishSpan(span, err) }()

	if ownerID == "" {
		err = sserr.New(sserr.CodeValidationRequired, "addressbook: owner id must not be empty")
		return nil, err
	}
	if email == "" {
		err = sserr.New(sserr.CodeValidationRequired, "addressbook: email must not be empty")
		return nil, err
	}

	user, err := r.directory.LookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	contact := Contact{UserID: user.ID, Email: user.Email, Alias: user.Alias}
	if err = r.store.Put(ctx, ownerID, contact); err != nil {
		err = ensureStoreError(err)
		return nil, err
	}
	return &contact, nil
}

// List returns every contact in ownerID's collection, in no particular
// order. An owner who has never added a contact gets an empty slice.
func (r *Resolver) List(ctx context.Context, ownerID string) ([]Contact, error) {
	ctx, span := r.startSpan(ctx, "List", ownerID)
	var err error
	defer func() { finishSpan(span, err) }()

	if ownerID == "" {
		err = sserr.New(sserr.CodeValidationRequired, "addressbook: owner id must not be empty")
		return nil, err
	}

	contacts, err := r.store.List(ctx, ownerID)
	if err != nil {
		err = ensureStoreError(err)
		return nil, err
	}
	return contacts, nil
}

// ensureStoreError guarantees a store failure surfaces as a coded error.
// Store backends already classify their own errors; anything uncoded is
// treated as a database failure.
func ensureStoreError(err error) error {
	if _, ok := sserr.AsError(err); ok {
		return err
	}
	return sserr.Wrap(err, sserr.CodeInternalDatabase, "addressbook: contact store operation failed")
}

func (r *Resolver) startSpan(ctx context.Context, operationName, ownerID string) (context.Context, trace.Span) {
	ctx, span := r.tracer.Start(ctx, "addressbook."+operationName,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(attribute.String("addressbook.owner_id", ownerID))
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
