package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHierarchy(t *testing.T) {
	assert.True(t, KindProxy.IsA(KindConnection))
	assert.True(t, KindProxy.IsA(KindRequest))
	assert.True(t, KindConnectTimeout.IsA(KindTimeout))
	assert.True(t, KindConnectTimeout.IsA(KindConnection))
	assert.True(t, KindInvalidProxyURL.IsA(KindInvalidURL))
	assert.False(t, KindTimeout.IsA(KindConnection))
	assert.False(t, KindRequest.IsA(KindHTTP))
}

func TestErrorsIsThroughWrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("fetch: %w", newError(KindProxy, "cannot connect to proxy", cause))

	assert.ErrorIs(t, err, ErrProxy)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, ErrRequest)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTimeout)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindProxy, kind)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindTimeout, Message: "request timed out", Method: "GET", URL: "http://x"}
	assert.Equal(t, "GET http://x: request timed out", err.Error())
	assert.Equal(t, "ConnectionError", KindConnection.String())
}

func TestKindsCatalog(t *testing.T) {
	catalog := Kinds()
	assert.Len(t, catalog, len(kinds))
	assert.Equal(t, KindRequest, catalog[0].Kind)
	assert.Empty(t, catalog[0].Parents)

	for _, info := range catalog {
		if info.Kind == KindSSL {
			assert.Equal(t, []string{"ConnectionError"}, info.Parents)
		}
	}
}
