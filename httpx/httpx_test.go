package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mbolis/survey-builder/config"
	"github.com/mbolis/survey-builder/database/dbtest"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "192.0.2.7:5123"
	assert.Equal(t, "192.0.2.7", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "")
	r.RemoteAddr = "not-an-address"
	assert.Equal(t, "not-an-address", ClientIP(r))
}

func TestPeerIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "192.0.2.7:5123"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.7", PeerIP(r), "forwarded headers are ignored")

	r.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", PeerIP(r))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fault.ErrNotFound, http.StatusNotFound},
		{fault.NewClientError("nope", fault.ErrForbidden), http.StatusForbidden},
		{errors.Join(fault.ErrUniqueViolation, errors.New("UNIQUE")), http.StatusConflict},
		{fault.NewClientError("Cannot move in that direction", fault.ErrBoundary), http.StatusConflict},
		{fault.Client("bad input"), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, StatusOf(tt.err))
		})
	}
}

func TestFail(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, httptest.NewRequest("GET", "/", nil), "test.fail", fault.NewClientError("Cannot move in that direction", fault.ErrBoundary))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Cannot move in that direction", body["error"])

	rec = httptest.NewRecorder()
	Fail(rec, httptest.NewRequest("GET", "/", nil), "test.fail", errors.New("secret detail"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	Invalid(rec, httptest.NewRequest("POST", "/", nil), map[string][]string{"question_1": {"This field is required."}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"errors":{"question_1":["This field is required."]}}`, rec.Body.String())
}

func TestPage(t *testing.T) {
	limit, offset := Page(httptest.NewRequest("GET", "/?limit=5000&offset=40", nil), 20)
	assert.Equal(t, 500, limit)
	assert.Equal(t, 40, offset)

	limit, offset = Page(httptest.NewRequest("GET", "/?limit=x", nil), 20)
	assert.Equal(t, 20, limit)
	assert.Zero(t, offset)
}

func TestActorFromClaims(t *testing.T) {
	actor, ok := ActorFromClaims(map[string]string{ClaimAccountID: "3", ClaimUsername: "ann", ClaimRole: "editor"})
	require.True(t, ok)
	assert.Equal(t, model.Actor{ID: 3, Username: "ann", Role: model.RoleEditor}, actor)

	_, ok = ActorFromClaims(map[string]string{ClaimAccountID: "3", ClaimRole: "admin"})
	assert.False(t, ok)
	_, ok = ActorFromClaims(map[string]string{})
	assert.False(t, ok)
}

func TestResponseBufferDefaultsToOK(t *testing.T) {
	var b ResponseBuffer
	assert.Equal(t, http.StatusOK, b.Status())

	b.Header().Set("X-Test", "1")
	_, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	b.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, b.Status())
	assert.Equal(t, "hello", b.Body.String())
}

func TestExchangeTokens(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	_, err := CreateAccount(ctx, db, "ann", "ann@example.org", "s3cret", model.RoleEditor)
	require.NoError(t, err)
	bs := NewBearerServer(db, config.Config{TokenSecret: "test-secret", TokenTTL: time.Minute})

	_, err = ExchangeTokens(ctx, bs, PasswordGrant("ann", "wrong"))
	var refused *TokenError
	require.ErrorAs(t, err, &refused)
	assert.Equal(t, http.StatusUnauthorized, refused.Status)

	tokens, err := ExchangeTokens(ctx, bs, PasswordGrant("ann", "s3cret"))
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	refreshed, err := ExchangeTokens(ctx, bs, RefreshGrant(tokens.RefreshToken))
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	t.Run("refresh tokens are single use", func(t *testing.T) {
		_, err := ExchangeTokens(ctx, bs, RefreshGrant(tokens.RefreshToken))
		assert.ErrorAs(t, err, &refused)
	})

	t.Run("revoked tokens cannot refresh", func(t *testing.T) {
		require.NoError(t, RevokeTokens(ctx, db, "ann"))
		_, err := ExchangeTokens(ctx, bs, RefreshGrant(refreshed.RefreshToken))
		assert.ErrorAs(t, err, &refused)
	})
}

func TestLookupActor(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	acc, err := CreateAccount(ctx, db, "bob", "", "pw", model.RoleFormCreator)
	require.NoError(t, err)

	actor, err := LookupActor(ctx, db, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: acc.ID, Username: "bob", Role: model.RoleFormCreator}, actor)

	_, err = LookupActor(ctx, db, "nobody")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}
