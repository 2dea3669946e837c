package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"

	"github.com/IngAlexfit/caribeVibes-system-sub001/middleware/jwtware"
)

// RegisterAuthRoutes mounts the auth endpoints on app, typically a group such
// as /api/auth.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.Register).Name("auth.register")
	app.Post(controller.Routes.Login, controller.Login).Name("auth.login")
	app.Post(controller.Routes.Validate, controller.Validate).Name("auth.validate")
	app.Get(controller.Routes.User, controller.CurrentUser).Name("auth.user")
	app.Post(controller.Routes.Refresh, controller.Refresh).Name("auth.refresh")
	app.Get(controller.Routes.Health, controller.Health).Name("auth.health")
	app.Get(controller.Routes.Me, controller.ProtectedRoute(), controller.Me).Name("auth.me")

	return controller
}

type AuthControllerRoutes struct {
	Register string
	Login    string
	Validate string
	User     string
	Refresh  string
	Health   string
	Me       string
}

type AuthController struct {
	Debug     bool
	Logger    Logger
	Auther    Authenticator
	Validator jwtware.TokenValidator
	Routes    *AuthControllerRoutes
	Clock     Clock
	// TokenQueryParam is the query parameter read when no bearer header is sent
	TokenQueryParam string
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthenticator sets the Authenticator used by the controller
func WithAuthenticator(a Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

// WithControllerLogger sets the controller logger
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithTokenValidator sets the validator used by ProtectedRoute
func WithTokenValidator(v jwtware.TokenValidator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if v != nil {
			c.Validator = v
		}
		return c
	}
}

// WithDebug dumps sanitized responses to stdout
func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Clock:  time.Now,
		Routes: &AuthControllerRoutes{
			Register: "/register",
			Login:    "/login",
			Validate: "/validate",
			User:     "/user",
			Refresh:  "/refresh",
			Health:   "/health",
			Me:       "/me",
		},
		TokenQueryParam: "token",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Validator == nil {
		auther := c.Auther
		c.Validator = jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
			p, err := auther.ExtractIdentity(raw)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	return c
}

// ProtectedRoute returns the bearer middleware guarding authenticated routes
func (a *AuthController) ProtectedRoute(requiredRole ...string) fiber.Handler {
	cfg := jwtware.Config{
		TokenValidator:  a.Validator,
		TokenLookup:     fmt.Sprintf("header:%s,query:%s", fiber.HeaderAuthorization, a.TokenQueryParam),
		ContextKey:      "user",
		ContextEnricher: enrichContext,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrAccessDenied) {
				return c.Status(fiber.StatusForbidden).JSON(&ErrorResponse{
					Status:    fiber.StatusForbidden,
					Error:     "Forbidden",
					Code:      "ACCESS_DENIED",
					Message:   "Access denied",
					Path:      c.Path(),
					Timestamp: a.Clock(),
				})
			}
			return a.error(c, ErrInvalidToken)
		},
	}
	if len(requiredRole) > 0 {
		cfg.RequiredRole = requiredRole[0]
	}
	return jwtware.New(cfg)
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := RegisterUserMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return a.error(c, NewValidationError(map[string]string{"body": "malformed request body"}))
	}

	res, err := a.Auther.Register(c.UserContext(), payload)
	if err != nil {
		return a.error(c, err)
	}

	a.debug(res.User)

	return c.Status(fiber.StatusCreated).JSON(NewAuthResponse(res))
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := LoginMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return a.error(c, NewValidationError(map[string]string{"body": "malformed request body"}))
	}

	if err := payload.Validate(); err != nil {
		return a.error(c, err)
	}

	res, err := a.Auther.Login(c.UserContext(), payload.GetIdentifier(), payload.Password)
	if err != nil {
		return a.error(c, err)
	}

	a.debug(res.User)

	return c.JSON(NewAuthResponse(res))
}

func (a *AuthController) Validate(c *fiber.Ctx) error {
	raw := a.tokenFromRequest(c)
	return c.JSON(NewValidateResponse(raw != "" && a.Auther.ValidateToken(raw)))
}

func (a *AuthController) CurrentUser(c *fiber.Ctx) error {
	raw := a.tokenFromRequest(c)
	if raw == "" {
		return a.error(c, NewValidationError(map[string]string{"token": "is required"}))
	}

	user, err := a.Auther.CurrentUser(c.UserContext(), raw)
	if err != nil {
		return a.error(c, err)
	}

	return c.JSON(user)
}

func (a *AuthController) Refresh(c *fiber.Ctx) error {
	raw := a.tokenFromRequest(c)
	if raw == "" {
		return a.error(c, NewValidationError(map[string]string{"token": "is required"}))
	}

	token, err := a.Auther.Refresh(c.UserContext(), raw)
	if err != nil {
		return a.error(c, err)
	}

	return c.JSON(NewRefreshResponse(token))
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	claims, ok := jwtware.ClaimsFromLocals(c, "user")
	if !ok {
		return a.error(c, ErrInvalidToken)
	}

	principal, ok := claims.(*Principal)
	if !ok {
		principal = &Principal{
			Email:     claims.Subject(),
			ID:        claims.UserID(),
			RoleSet:   claims.RoleNames(),
			ExpiresOn: claims.Expires(),
		}
	}

	return c.JSON(NewPrincipalResponse(principal))
}

func (a *AuthController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "UP",
		"service": "auth",
		"message": "Authentication service is running",
	})
}

func (a *AuthController) tokenFromRequest(c *fiber.Ctx) string {
	if raw := strings.TrimSpace(c.Query(a.TokenQueryParam)); raw != "" {
		return raw
	}
	raw, err := jwtware.BearerToken(c.Get(fiber.HeaderAuthorization), TokenTypeBearer)
	if err != nil {
		return ""
	}
	return raw
}

func (a *AuthController) error(c *fiber.Ctx, err error) error {
	res := NewErrorResponse(err, c.Path(), a.Clock())

	switch {
	case errors.Is(err, ErrConfiguration):
		a.Logger.Error("auth request failed on configuration", "path", c.Path(), "error", err)
	case res.Status >= fiber.StatusInternalServerError:
		a.Logger.Error("auth request failed", "path", c.Path(), "error", err)
	default:
		a.Logger.Debug("auth request rejected", "path", c.Path(), "code", res.Code)
	}

	return c.Status(res.Status).JSON(res)
}

func (a *AuthController) debug(v any) {
	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(v))
	}
}
