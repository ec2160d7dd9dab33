package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

func TestCredentialMode_Valid(t *testing.T) {
	t.Parallel()
	assert.True(t, CredentialModeForward.Valid())
	assert.True(t, CredentialModeServiceKey.Valid())
	assert.False(t, CredentialMode("").Valid())
	assert.False(t, CredentialMode("api-key").Valid())
}

func TestNewCredentialSource_Forward(t *testing.T) {
	t.Parallel()
	source, err := NewCredentialSource(CredentialModeForward, "")
	require.NoError(t, err)
	assert.IsType(t, &ForwardingCredentials{}, source)
}

func TestNewCredentialSource_ServiceKey(t *testing.T) {
	t.Parallel()
	source, err := NewCredentialSource(CredentialModeServiceKey, Secret("internal-key"))
	require.NoError(t, err)
	assert.IsType(t, &ServiceKeyCredentials{}, source)
}

func TestNewCredentialSource_ServiceKeyRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := NewCredentialSource(CredentialModeServiceKey, "")
	require.Error(t, err)
	assert.Equal(t, sserr.CodeInternalConfiguration, sserr.GetCode(err))
}

func TestNewCredentialSource_UnknownMode(t *testing.T) {
	t.Parallel()
	_, err := NewCredentialSource(CredentialMode("mystery"), "")
	require.Error(t, err)
	assert.Equal(t, sserr.CodeInternalConfiguration, sserr.GetCode(err))
}

func TestForwardingCredentials_Apply(t *testing.T) {
	t.Parallel()
	ctx := ContextWithBearerToken(context.Background(), Secret("caller-token"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://id.stricklysoft.test/api/users", nil)
	require.NoError(t, err)

	source := &ForwardingCredentials{}
	require.NoError(t, source.Apply(req))

	assert.Equal(t, "Bearer caller-token", req.Header.Get(HeaderAuthorization))
	assert.Empty(t, req.Header.Get(HeaderInternalAPIKey))
}

func TestForwardingCredentials_Apply_NoTokenInContext(t *testing.T) {
	t.Parallel()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://id.stricklysoft.test/api/users", nil)
	require.NoError(t, err)

	source := &ForwardingCredentials{}
	err = source.Apply(req)
	require.Error(t, err, "forwarding outside an authenticated request path must fail")
	assert.Equal(t, sserr.CodeAuthentication, sserr.GetCode(err))
	assert.Empty(t, req.Header.Get(HeaderAuthorization))
}

func TestServiceKeyCredentials_Apply(t *testing.T) {
	t.Parallel()
	source, err := NewCredentialSource(CredentialModeServiceKey, Secret("internal-key"))
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://id.stricklysoft.test/api/users", nil)
	require.NoError(t, err)

	require.NoError(t, source.Apply(req))
	assert.Equal(t, "internal-key", req.Header.Get(HeaderInternalAPIKey))
	assert.Empty(t, req.Header.Get(HeaderAuthorization), "service-key mode must not forward the caller's token")
}
