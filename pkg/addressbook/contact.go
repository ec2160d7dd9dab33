// Package addressbook implements the contact domain of the address book
// service: the Contact model, the pluggable ContactStore backends, the
// Resolver workflow that turns an email into a persisted contact, and the
// HTTP surface that exposes the collection.
//
// Every operation is scoped to an owner, the verified subject id of the
// calling user. Owners can only ever read or write their own collection;
// there is no cross-owner operation anywhere in the package.
package addressbook

import (
	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// Contact is a single entry in a user's address book. UserID is the
// directory's stable subject identifier for the contact, not the owner.
//
// Re-adding a contact overwrites the previous entry for the same UserID,
// so a collection never holds two entries for the same person.
type Contact struct {
	// UserID is the contact's directory subject identifier.
	UserID string `json:"userId"`

	// Email is the contact's registered email address.
	Email string `json:"email"`

	// Alias is the contact's display alias. May be empty when the
	// directory record carries none.
	Alias string `json:"alias"`
}

// Validate checks that the contact carries the fields every persisted
// entry must have. Alias is optional.
func (c *Contact) Validate() *sserr.Error {
	if c.UserID == "" {
		return sserr.New(sserr.CodeValidationRequired, "addressbook: contact user id must not be empty")
	}
	if c.Email == "" {
		return sserr.New(sserr.CodeValidationRequired, "addressbook: contact email must not be empty")
	}
	return nil
}
