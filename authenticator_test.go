package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
	"github.com/IngAlexfit/caribeVibes-system-sub001/repository"
)

const testSigningKey = "caribe-vibes-test-signing-key-0123456789"

var testEpoch = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

func newTestConfig(t *testing.T, ttl time.Duration) *auth.Config {
	t.Helper()
	cfg, err := auth.NewConfig(auth.ConfigOptions{
		SigningKey:      testSigningKey,
		TokenExpiration: ttl,
		BcryptCost:      auth.MinBcryptCost,
	})
	require.NoError(t, err)
	return cfg
}

func quietLogger() auth.Logger {
	return auth.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type authFixture struct {
	auther *auth.Auther
	store  *repository.MemoryStore
	clock  *manualClock
	sink   *recordingSink
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	return newAuthFixtureWithStore(t, repository.NewMemoryStore())
}

func newAuthFixtureWithStore(t *testing.T, store *repository.MemoryStore) *authFixture {
	t.Helper()

	clock := newManualClock(testEpoch)
	sink := &recordingSink{}

	auther, err := auth.NewAuthenticator(store, newTestConfig(t, time.Hour))
	require.NoError(t, err)

	auther.
		WithLogger(quietLogger()).
		WithClock(clock.Now).
		WithActivitySink(sink)

	return &authFixture{auther: auther, store: store, clock: clock, sink: sink}
}

func registration(email, username, password string) auth.RegisterUserMessage {
	return auth.RegisterUserMessage{
		FirstName:       "Ana",
		LastName:        "Rojas",
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	}
}

func TestNewAuthenticator(t *testing.T) {
	t.Run("requires a store", func(t *testing.T) {
		_, err := auth.NewAuthenticator(nil, newTestConfig(t, time.Hour))
		assert.ErrorIs(t, err, auth.ErrConfiguration)
	})

	t.Run("requires a config", func(t *testing.T) {
		_, err := auth.NewAuthenticator(repository.NewMemoryStore(), nil)
		assert.ErrorIs(t, err, auth.ErrConfiguration)
	})

	t.Run("builds a token service", func(t *testing.T) {
		a, err := auth.NewAuthenticator(repository.NewMemoryStore(), newTestConfig(t, time.Hour))
		require.NoError(t, err)
		assert.IsType(t, &auth.TokenService{}, a.TokenService())
	})
}

func TestRegisterLoginExtractRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	reg, err := f.auther.Register(ctx, registration("Ana@Example.com", "", "secret1"))
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", reg.User.Email)
	assert.Equal(t, "ana", reg.User.Username)
	assert.Equal(t, []string{auth.RoleClient}, reg.User.Roles)
	assert.True(t, reg.User.Active)
	assert.Equal(t, auth.TokenTypeBearer, reg.TokenType)
	assert.Equal(t, testEpoch.Add(time.Hour), reg.ExpiresAt)
	assert.Equal(t, int64(3600), reg.ExpiresIn())

	login, err := f.auther.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	p1, err := f.auther.ExtractIdentity(reg.Token)
	require.NoError(t, err)
	p2, err := f.auther.ExtractIdentity(login.Token)
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", p1.Subject())
	assert.Equal(t, p1.Subject(), p2.Subject())
	assert.Equal(t, reg.User.ID, p2.UserID())
	assert.Equal(t, []string{"ROLE_CLIENT"}, p2.Authorities())
	assert.NotEqual(t, p1.TokenID, p2.TokenID)
}

func TestRegisterScenario(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.auther.Register(ctx, registration("a@x.com", "alice", "secret1"))
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)

	for _, identifier := range []string{"a@x.com", "alice", "  A@X.COM "} {
		t.Run(identifier, func(t *testing.T) {
			login, err := f.auther.Login(ctx, identifier, "secret1")
			require.NoError(t, err)

			p, err := f.auther.ExtractIdentity(login.Token)
			require.NoError(t, err)
			assert.Equal(t, "a@x.com", p.Subject())
			assert.True(t, p.HasRole(auth.RoleClient))
			assert.True(t, p.HasRole("ROLE_CLIENT"))
			assert.False(t, p.HasRole(auth.RoleAdmin))
		})
	}

	_, err = f.auther.Login(ctx, "a@x.com", "Secret1")
	assert.Equal(t, auth.ErrInvalidCredentials, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auther.Register(ctx, registration("dup@example.com", "first", "secret1"))
	require.NoError(t, err)

	_, err = f.auther.Register(ctx, registration("DUP@example.com", "second", "secret1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrConflict)
	assert.Equal(t, "CONFLICT", auth.ErrorCode(err))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auther.Register(ctx, registration("one@example.com", "taken", "secret1"))
	require.NoError(t, err)

	_, err = f.auther.Register(ctx, registration("two@example.com", "taken", "secret1"))
	assert.ErrorIs(t, err, auth.ErrConflict)
}

func TestRegisterDerivedUsernameGetsSuffix(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, err := f.auther.Register(ctx, registration("maria@one.com", "", "secret1"))
	require.NoError(t, err)
	second, err := f.auther.Register(ctx, registration("maria@two.com", "", "secret1"))
	require.NoError(t, err)

	assert.Equal(t, "maria", first.User.Username)
	assert.True(t, strings.HasPrefix(second.User.Username, "maria_"))
	assert.NotEqual(t, first.User.Username, second.User.Username)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*auth.RegisterUserMessage)
		field  string
	}{
		{"missing email", func(m *auth.RegisterUserMessage) { m.Email = "" }, "email"},
		{"bad email", func(m *auth.RegisterUserMessage) { m.Email = "not-an-email" }, "email"},
		{"short password", func(m *auth.RegisterUserMessage) { m.Password, m.ConfirmPassword = "abc", "abc" }, "password"},
		{"short multibyte password", func(m *auth.RegisterUserMessage) { m.Password, m.ConfirmPassword = "ñññ", "ñññ" }, "password"},
		{"password over 72 bytes", func(m *auth.RegisterUserMessage) {
			m.Password = strings.Repeat("ñ", 37)
			m.ConfirmPassword = m.Password
		}, "password"},
		{"mismatched confirmation", func(m *auth.RegisterUserMessage) { m.ConfirmPassword = "secret2" }, "confirmPassword"},
		{"missing first name", func(m *auth.RegisterUserMessage) { m.FirstName = " " }, "firstName"},
		{"bad username", func(m *auth.RegisterUserMessage) { m.Username = "no spaces allowed" }, "username"},
		{"bad phone", func(m *auth.RegisterUserMessage) { m.Phone = "12" }, "phoneNumber"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			msg := registration("ana@example.com", "ana", "secret1")
			tt.mutate(&msg)

			_, err := f.auther.Register(context.Background(), msg)
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrValidation)
			assert.Contains(t, auth.ValidationFields(err), tt.field)
		})
	}
}

func TestRegisterAcceptsMultibytePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auther.Register(ctx, registration("mb@example.com", "multibyte", "ññññññ"))
	require.NoError(t, err)

	_, err = f.auther.Login(ctx, "mb@example.com", "ññññññ")
	assert.NoError(t, err)
}

func TestLoginRejectsSuffixPastBcryptLimit(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	password := strings.Repeat("a", 72)

	_, err := f.auther.Register(ctx, registration("long@example.com", "longpw", password))
	require.NoError(t, err)

	_, err = f.auther.Login(ctx, "long@example.com", password)
	require.NoError(t, err)

	_, err = f.auther.Login(ctx, "long@example.com", password+"-different-suffix")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRegisterFormatsPhone(t *testing.T) {
	f := newAuthFixture(t)
	msg := registration("ana@example.com", "ana", "secret1")
	msg.Phone = "300 123 4567"

	res, err := f.auther.Register(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "+573001234567", res.User.Phone)
}

func TestRegisterMissingDefaultRole(t *testing.T) {
	f := newAuthFixtureWithStore(t, repository.NewEmptyMemoryStore())

	_, err := f.auther.Register(context.Background(), registration("ana@example.com", "ana", "secret1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	ok, err := f.store.ExistsByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterCancelledContext(t *testing.T) {
	f := newAuthFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.auther.Register(ctx, registration("race@example.com", "", "secret1"))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, auth.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), conflicts.Load())
}

func TestRegisterStoreFailures(t *testing.T) {
	ctx := context.Background()
	role := &auth.Role{ID: 1, Name: auth.RoleClient}

	newMocked := func(t *testing.T, store *MockCredentialStore) *auth.Auther {
		a, err := auth.NewAuthenticator(store, newTestConfig(t, time.Hour))
		require.NoError(t, err)
		return a.WithLogger(quietLogger())
	}

	t.Run("lookup failure is internal", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("ExistsByEmail", mock.Anything, "ana@example.com").Return(false, errors.New("connection reset")).Once()

		_, err := newMocked(t, store).Register(ctx, registration("ana@example.com", "ana", "secret1"))
		require.Error(t, err)
		assert.Equal(t, "INTERNAL_ERROR", auth.ErrorCode(err))
		store.AssertExpectations(t)
	})

	t.Run("save conflict surfaces as conflict", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("ExistsByEmail", mock.Anything, "ana@example.com").Return(false, nil).Once()
		store.On("ExistsByUsername", mock.Anything, "ana").Return(false, nil).Once()
		store.On("FindRoleByName", mock.Anything, auth.RoleClient).Return(role, nil).Once()
		store.On("Save", mock.Anything, mock.AnythingOfType("*auth.User")).Return(nil, auth.ErrConflict).Once()

		_, err := newMocked(t, store).Register(ctx, registration("ana@example.com", "ana", "secret1"))
		assert.ErrorIs(t, err, auth.ErrConflict)
		store.AssertExpectations(t)
	})

	t.Run("saved account carries a hash", func(t *testing.T) {
		store := new(MockCredentialStore)
		store.On("ExistsByEmail", mock.Anything, "ana@example.com").Return(false, nil).Once()
		store.On("ExistsByUsername", mock.Anything, "ana").Return(false, nil).Once()
		store.On("FindRoleByName", mock.Anything, auth.RoleClient).Return(role, nil).Once()
		store.On("Save", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.PasswordHash != "" && u.PasswordHash != "secret1" && u.Active && u.HasRole(auth.RoleClient)
		})).Return(&auth.User{ID: 42, Email: "ana@example.com", Username: "ana", Active: true, Roles: []auth.Role{*role}}, nil).Once()

		res, err := newMocked(t, store).Register(ctx, registration("ana@example.com", "ana", "secret1"))
		require.NoError(t, err)
		assert.Equal(t, int64(42), res.User.ID)
		store.AssertExpectations(t)
	})
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)
	_, err = f.auther.Register(ctx, registration("off@example.com", "off", "secret1"))
	require.NoError(t, err)
	require.NoError(t, f.store.SetActive(ctx, "off@example.com", false))

	_, wrongPassword := f.auther.Login(ctx, "ana@example.com", "wrong-password")
	_, unknownAccount := f.auther.Login(ctx, "ghost@example.com", "secret1")
	_, inactive := f.auther.Login(ctx, "off@example.com", "secret1")
	_, empty := f.auther.Login(ctx, "", "")

	for _, err := range []error{wrongPassword, unknownAccount, inactive, empty} {
		assert.Equal(t, auth.ErrInvalidCredentials, err)
	}
	assert.Equal(t, wrongPassword.Error(), unknownAccount.Error())

	res := auth.NewErrorResponse(wrongPassword, "/api/auth/login", testEpoch)
	assert.Equal(t, auth.InvalidCredentialsMessage, res.Message)
}

func TestLoginStoreFailureIsInternal(t *testing.T) {
	store := new(MockCredentialStore)
	store.On("FindByIdentifier", mock.Anything, "ana@example.com").Return(nil, errors.New("db down")).Once()

	a, err := auth.NewAuthenticator(store, newTestConfig(t, time.Hour))
	require.NoError(t, err)
	a.WithLogger(quietLogger())

	_, err = a.Login(context.Background(), "ana@example.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, "INTERNAL_ERROR", auth.ErrorCode(err))
}

func TestTokenExpiresWithClock(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)

	assert.True(t, f.auther.ValidateToken(res.Token))

	f.clock.Advance(time.Hour - time.Second)
	assert.True(t, f.auther.ValidateToken(res.Token))

	f.clock.Advance(time.Second)
	assert.False(t, f.auther.ValidateToken(res.Token))

	_, err = f.auther.ExtractIdentity(res.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = f.auther.Refresh(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestZeroTTLTokenIsNeverValid(t *testing.T) {
	f := newAuthFixture(t)

	identity := auth.NewIdentityFromUser(&auth.User{ID: 7, Email: "ana@example.com", Username: "ana"})
	raw, err := f.auther.TokenService().Encode(identity, testEpoch, 0)
	require.NoError(t, err)

	assert.False(t, f.auther.ValidateToken(raw))
	_, err = f.auther.ExtractIdentity(raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTamperedTokenIsRejected(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.auther.Register(context.Background(), registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)
	require.True(t, f.auther.ValidateToken(res.Token))

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	for i := 0; i < len(res.Token); i++ {
		if res.Token[i] == '.' {
			continue
		}
		replacement := alphabet[(strings.IndexByte(alphabet, res.Token[i])+1)%len(alphabet)]
		tampered := res.Token[:i] + string(replacement) + res.Token[i+1:]

		if !assert.False(t, f.auther.ValidateToken(tampered), "byte %d", i) {
			return
		}
	}
}

func TestTokenFromAnotherKeyIsRejected(t *testing.T) {
	f := newAuthFixture(t)

	otherCfg, err := auth.NewConfig(auth.ConfigOptions{
		SigningKey:      strings.Repeat("x", auth.MinSigningKeyLength),
		TokenExpiration: time.Hour,
	})
	require.NoError(t, err)
	other, err := auth.NewTokenService(otherCfg, quietLogger())
	require.NoError(t, err)

	raw, err := other.Encode(auth.NewIdentityFromUser(&auth.User{ID: 1, Email: "ana@example.com"}), testEpoch, time.Hour)
	require.NoError(t, err)

	assert.False(t, f.auther.ValidateToken(raw))
}

func TestValidateGarbage(t *testing.T) {
	f := newAuthFixture(t)

	for _, raw := range []string{"", "   ", "abc", "a.b.c", "Bearer x.y.z"} {
		assert.False(t, f.auther.ValidateToken(raw), raw)
		_, err := f.auther.ExtractIdentity(raw)
		assert.ErrorIs(t, err, auth.ErrInvalidToken, raw)
	}
}

func TestRefreshReflectsCurrentRoles(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)

	require.NoError(t, f.store.AssignRole(ctx, "ana@example.com", auth.RoleAdmin))
	f.clock.Advance(time.Minute)

	refreshed, err := f.auther.Refresh(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, testEpoch.Add(time.Minute+time.Hour), refreshed.ExpiresAt)

	fresh, err := f.auther.ExtractIdentity(refreshed.Token)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{auth.RoleClient, auth.RoleAdmin}, fresh.RoleNames())

	// the old token keeps the roles it was minted with
	old, err := f.auther.ExtractIdentity(res.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleClient}, old.RoleNames())

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventRegisterSuccess,
		auth.ActivityEventRefreshSuccess,
	}, f.sink.Types())
}

func TestRefreshDeactivatedAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)
	require.NoError(t, f.store.SetActive(ctx, "ana@example.com", false))

	_, err = f.auther.Refresh(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	_, err = f.auther.CurrentUser(ctx, res.Token)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	// the token itself still validates until expiry
	assert.True(t, f.auther.ValidateToken(res.Token))
}

func TestCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res, err := f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)

	view, err := f.auther.CurrentUser(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, view.ID)
	assert.Equal(t, "Ana Rojas", view.FullName)

	_, err = f.auther.CurrentUser(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestActivityEvents(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)
	_, err = f.auther.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.Error(t, err)
	_, err = f.auther.Login(ctx, "ana", "secret1")
	require.NoError(t, err)
	_, err = f.auther.Login(ctx, "ana", "nope")
	require.Error(t, err)
	_, err = f.auther.Refresh(ctx, "garbage")
	require.Error(t, err)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventRegisterSuccess,
		auth.ActivityEventRegisterFailure,
		auth.ActivityEventLoginSuccess,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventRefreshFailure,
	}, f.sink.Types())

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, "CONFLICT", f.sink.events[1].Metadata["error_code"])
	assert.Equal(t, "INVALID_CREDENTIALS", f.sink.events[3].Metadata["error_code"])
	assert.Equal(t, testEpoch, f.sink.events[0].OccurredAt)
}

func TestActivitySinkErrorDoesNotFailOperation(t *testing.T) {
	f := newAuthFixture(t)
	f.sink.err = errors.New("sink offline")

	_, err := f.auther.Register(context.Background(), registration("ana@example.com", "ana", "secret1"))
	assert.NoError(t, err)
}

func TestWithTokenCodec(t *testing.T) {
	f := newAuthFixture(t)

	codec := new(MockTokenCodec)
	codec.On("Decode", "opaque").Return(&auth.Token{
		Subject:   "ana@example.com",
		UserID:    9,
		Roles:     []string{auth.RoleOperator},
		ExpiresAt: testEpoch.Add(time.Minute),
	}, nil)

	f.auther.WithTokenCodec(codec)

	p, err := f.auther.ExtractIdentity("opaque")
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.UserID())
	assert.True(t, p.HasRole(auth.RoleOperator))
	codec.AssertExpectations(t)
}

func TestArgon2idAccountsLogIn(t *testing.T) {
	cfg, err := auth.NewConfig(auth.ConfigOptions{
		SigningKey:        testSigningKey,
		TokenExpiration:   time.Hour,
		PasswordAlgorithm: auth.AlgorithmArgon2id,
	})
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	a, err := auth.NewAuthenticator(store, cfg)
	require.NoError(t, err)
	a.WithLogger(quietLogger())

	ctx := context.Background()
	_, err = a.Register(ctx, registration("ana@example.com", "ana", "secret1"))
	require.NoError(t, err)

	user, err := store.FindByIdentifier(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))

	_, err = a.Login(ctx, "ana", "secret1")
	assert.NoError(t, err)
}
