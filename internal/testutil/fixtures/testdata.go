// Package fixtures provides shared test data constants for the address
// book service test suite.
//
// Using common constants for owners, contacts, and provider identities
// prevents magic strings in tests and keeps values consistent across
// packages.
package fixtures

// Standard identity values used in auth and handler tests.
const (
	// TestSubject is the default subject claim for test identities. It
	// doubles as the owner id in contact store tests.
	TestSubject = "user-abc-123"

	// TestEmail is the default email claim for test identities.
	TestEmail = "ada@stricklysoft.test"

	// TestAlias is the default alias claim for test identities.
	TestAlias = "ada"

	// TestIssuer is the default issuer for test identities.
	TestIssuer = "https://auth.stricklysoft.test"

	// TestAudience is the default audience for test identities.
	TestAudience = "addressbook"
)

// Standard contact values used in store and resolver tests.
const (
	// ContactUserID is the default directory subject id for a test contact.
	ContactUserID = "user-def-456"

	// ContactEmail is the default email for a test contact.
	ContactEmail = "grace@stricklysoft.test"

	// ContactAlias is the default alias for a test contact.
	ContactAlias = "grace"

	// AltContactUserID is an alternative contact id for tests needing two
	// distinct contacts.
	AltContactUserID = "user-ghi-789"

	// AltContactEmail is an alternative contact email.
	AltContactEmail = "alan@stricklysoft.test"

	// AltContactAlias is an alternative contact alias.
	AltContactAlias = "alan"
)

// Standard configuration values used in config loader tests.
const (
	// TestEnvPrefix is the default environment variable prefix for config tests.
	TestEnvPrefix = "TESTAPP"

	// TestConfigYAML is a minimal valid YAML configuration for tests.
	TestConfigYAML = `host: localhost
port: 8080
database: testdb
`

	// TestConfigJSON is a minimal valid JSON configuration for tests.
	TestConfigJSON = `{
  "host": "localhost",
  "port": 8080,
  "database": "testdb"
}`
)

// Standard database configuration values used in postgres client tests.
const (
	// TestDBHost is the default database host for test configurations.
	TestDBHost = "localhost"

	// TestDBPort is the default database port for test configurations.
	TestDBPort = 5432

	// TestDBName is the default database name for test configurations.
	TestDBName = "testdb"

	// TestDBUser is the default database user for test configurations.
	TestDBUser = "testuser"

	// TestDBPassword is the default database password for test configurations.
	// This is a deliberately weak value suitable only for unit tests.
	TestDBPassword = "testpass"
)
