package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the auth spans
const TracerName = "caribevibes/auth"

// maxUsernameAttempts bounds the suffixes tried for a derived username
const maxUsernameAttempts = 5

// Auther coordinates registration, login, token validation and refresh. It
// holds only immutable collaborators and is safe for concurrent use.
type Auther struct {
	store        CredentialStore
	provider     *UserProvider
	hasher       PasswordHasher
	tokenService TokenCodec
	ttl          time.Duration
	defaultRole  string
	phoneRegion  string
	logger       Logger
	activitySink ActivitySink
	clock        Clock
	tracer       trace.Tracer
}

// Verify interface compliance
var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Auther backed by store and configured by cfg
func NewAuthenticator(store CredentialStore, cfg *Config) (*Auther, error) {
	if store == nil {
		return nil, configurationError("credential store is required")
	}

	if cfg == nil {
		return nil, configurationError("auth config is required")
	}

	tokenService, err := NewTokenService(cfg, defLogger{})
	if err != nil {
		return nil, err
	}

	hasher, err := NewPasswordHasherFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Auther{
		store:        store,
		provider:     NewUserProvider(store, hasher),
		hasher:       hasher,
		tokenService: tokenService,
		ttl:          cfg.GetTokenExpiration(),
		defaultRole:  cfg.GetDefaultRole(),
		phoneRegion:  cfg.GetPhoneRegion(),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		clock:        time.Now,
		tracer:       otel.Tracer(TracerName),
	}, nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.provider.WithLogger(logger)
	if ts, ok := s.tokenService.(*TokenService); ok {
		ts.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPasswordHasher replaces the hasher used for registration and login
func (s *Auther) WithPasswordHasher(hasher PasswordHasher) *Auther {
	if hasher == nil {
		return s
	}
	s.hasher = hasher
	s.provider = NewUserProvider(s.store, hasher).WithLogger(s.logger)
	return s
}

// WithTokenCodec replaces the codec used to sign and decode tokens
func (s *Auther) WithTokenCodec(codec TokenCodec) *Auther {
	if codec != nil {
		s.tokenService = codec
	}
	return s
}

// WithClock sets the time source used for issuing and expiring tokens
func (s *Auther) WithClock(clock Clock) *Auther {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// WithTracer sets the tracer used for operation spans
func (s *Auther) WithTracer(tracer trace.Tracer) *Auther {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// TokenService returns the codec used by this Auther
func (s *Auther) TokenService() TokenCodec {
	return s.tokenService
}

// Register creates a new active account with the default role and returns a
// token for it.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()

	res, err := s.register(ctx, msg)
	if err != nil {
		recordSpanError(span, err)
		s.emitAuthEvent(ctx, ActivityEventRegisterFailure, 0, map[string]any{
			"error_code": ErrorCode(err),
		})
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", res.User.ID))
	s.emitAuthEvent(ctx, ActivityEventRegisterSuccess, res.User.ID, nil)
	return res, nil
}

func (s *Auther) register(ctx context.Context, msg RegisterUserMessage) (*AuthResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Wrapf(err, "context cancelled during user registration")
	}

	msg = msg.Normalize()
	derived := msg.Username == ""
	if derived {
		msg.Username = usernameFromEmail(msg.Email)
	}

	if err := msg.ValidateForRegion(s.phoneRegion); err != nil {
		return nil, err
	}

	if msg.Phone != "" {
		phone, err := FormatPhoneNumber(msg.Phone, s.phoneRegion)
		if err != nil {
			return nil, NewValidationError(map[string]string{"phoneNumber": "must be a valid phone number"})
		}
		msg.Phone = phone
	}

	exists, err := s.store.ExistsByEmail(ctx, msg.Email)
	if err != nil {
		return nil, oops.With("operation", "exists_by_email").Wrapf(err, "failed to check email")
	}
	if exists {
		return nil, conflictError("email", msg.Email)
	}

	username, err := s.availableUsername(ctx, msg.Username, derived)
	if err != nil {
		return nil, err
	}

	role, err := s.store.FindRoleByName(ctx, s.defaultRole)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Error("default role is missing from the credential store", "role", s.defaultRole)
			return nil, configurationError("default role %q is not available", s.defaultRole)
		}
		return nil, oops.With("role", s.defaultRole).Wrapf(err, "failed to resolve default role")
	}

	hash, err := s.hasher.Hash(msg.Password)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, oops.Wrapf(err, "failed to hash password")
	}

	user := &User{
		Username:     username,
		Email:        msg.Email,
		PasswordHash: hash,
		FirstName:    msg.FirstName,
		LastName:     msg.LastName,
		Phone:        msg.Phone,
		Active:       true,
		CreatedAt:    s.now(),
		Roles:        []Role{*role},
	}

	saved, err := s.store.Save(ctx, user)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, oops.With("operation", "save").Wrapf(err, "failed to persist account")
	}

	s.logger.Info("account registered", "user_id", saved.ID)

	token, err := s.issue(saved)
	if err != nil {
		return nil, err
	}

	return &AuthResult{IssuedToken: *token, User: *NewUserView(saved)}, nil
}

func (s *Auther) availableUsername(ctx context.Context, username string, derived bool) (string, error) {
	candidate := username
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		exists, err := s.store.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", oops.With("operation", "exists_by_username").Wrapf(err, "failed to check username")
		}

		if !exists {
			return candidate, nil
		}

		if !derived {
			break
		}

		suffix := uuid.NewString()[:6]
		base := username
		if len(base)+len(suffix)+1 > maxUsernameLength {
			base = base[:maxUsernameLength-len(suffix)-1]
		}
		candidate = base + "_" + suffix
	}

	return "", conflictError("username", username)
}

// Login verifies credentials and returns a fresh token. Every rejection
// returns ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	res, err := s.login(ctx, identifier, password)
	if err != nil {
		recordSpanError(span, err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, 0, map[string]any{
			"error_code": ErrorCode(err),
		})
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", res.User.ID))
	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, res.User.ID, nil)
	return res, nil
}

func (s *Auther) login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	if NormalizeIdentifier(identifier) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login failed to read credential store", "error", err)
		return nil, oops.Wrapf(err, "failed to verify credentials")
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.logger.Debug("stored password hash uses outdated parameters", "user_id", user.ID)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{IssuedToken: *token, User: *NewUserView(user)}, nil
}

// ValidateToken reports whether raw carries a good signature and has not
// expired. It never fails.
func (s *Auther) ValidateToken(raw string) bool {
	_, ok := s.decodeValid(raw)
	return ok
}

// ExtractIdentity returns the principal carried by raw, or ErrInvalidToken
// when ValidateToken would report false.
func (s *Auther) ExtractIdentity(raw string) (*Principal, error) {
	token, ok := s.decodeValid(raw)
	if !ok {
		return nil, ErrInvalidToken
	}
	return newPrincipal(token), nil
}

// Refresh issues a new token for the current state of the account raw was
// issued to. The old token stays valid until its own expiry.
func (s *Auther) Refresh(ctx context.Context, raw string) (*IssuedToken, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	user, err := s.userFromToken(ctx, raw)
	if err != nil {
		recordSpanError(span, err)
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, 0, map[string]any{
			"error_code": ErrorCode(err),
		})
		return nil, err
	}

	token, err := s.issue(user)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	s.emitAuthEvent(ctx, ActivityEventRefreshSuccess, user.ID, nil)
	return token, nil
}

// CurrentUser returns the current account of the token holder
func (s *Auther) CurrentUser(ctx context.Context, raw string) (*UserView, error) {
	ctx, span := s.tracer.Start(ctx, "auth.CurrentUser")
	defer span.End()

	user, err := s.userFromToken(ctx, raw)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	return NewUserView(user), nil
}

// TokenValidator adapts the Auther to token validating middleware
func (s *Auther) TokenValidator() PrincipalValidator {
	return PrincipalValidator{auther: s}
}

func (s *Auther) userFromToken(ctx context.Context, raw string) (*User, error) {
	token, ok := s.decodeValid(raw)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := s.provider.FindActiveUser(ctx, token.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("token subject has no active account", "user_id", token.UserID)
			return nil, oops.Code(ErrorCode(ErrNotFound)).With("user_id", token.UserID).Wrap(ErrNotFound)
		}
		return nil, oops.Wrapf(err, "failed to load token subject")
	}

	return user, nil
}

func (s *Auther) decodeValid(raw string) (*Token, bool) {
	token, err := s.tokenService.Decode(raw)
	if err != nil {
		return nil, false
	}
	return token, token.ValidAt(s.clock())
}

func (s *Auther) issue(user *User) (*IssuedToken, error) {
	issuedAt := s.now()

	raw, err := s.tokenService.Encode(NewIdentityFromUser(user), issuedAt, s.ttl)
	if err != nil {
		s.logger.Error("failed to sign token", "user_id", user.ID, "error", err)
		return nil, oops.With("user_id", user.ID).Wrapf(err, "failed to issue token")
	}

	return &IssuedToken{
		Token:     raw,
		TokenType: TokenTypeBearer,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.ttl),
	}, nil
}

// now truncates to the second, the precision of token timestamps
func (s *Auther) now() time.Time {
	return s.clock().Truncate(time.Second)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID int64, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.clock(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "event", eventType, "error", err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, ErrorCode(err))
}
