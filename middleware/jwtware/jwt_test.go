package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IngAlexfit/caribeVibes-system-sub001/middleware/jwtware"
)

type claimsStub struct {
	subject string
	id      int64
	roles   []string
}

func (c claimsStub) Subject() string { return c.subject }
func (c claimsStub) UserID() int64 { return c.id }
func (c claimsStub) RoleNames() []string { return c.roles }
func (c claimsStub) Expires() time.Time { return time.Now().Add(time.Hour) }
func (c claimsStub) HasRole(r string) bool {
	for _, role := range c.roles {
		if role == r {
			return true
		}
	}
	return false
}

func validatorFor(token string, claims jwtware.AuthClaims) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
		if raw != token {
			return nil, errors.New("invalid token")
		}
		return claims, nil
	})
}

func newApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	app.Get("/private", jwtware.New(cfg), func(c *fiber.Ctx) error {
		claims, ok := jwtware.ClaimsFromLocals(c, cfg.ContextKey)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(claims.Subject())
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

//--------------------------------------------------------------------------------------
// Tests
//--------------------------------------------------------------------------------------

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	claims := claimsStub{subject: "a@x.com", id: 1, roles: []string{"CLIENT"}}
	app := newApp(jwtware.Config{TokenValidator: validatorFor("good", claims)})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "a@x.com", body)

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	status, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, status)

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer bad")
	status, body = do(t, app, req)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body)
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	claims := claimsStub{subject: "b@x.com"}
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", claims),
		TokenLookup:    "header:Authorization,query:token,cookie:jwt",
	})

	req := httptest.NewRequest(http.MethodGet, "/private?token=good", nil)
	status, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "b@x.com", body)

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "good"})
	status, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestJWTWare_FilterFunction(t *testing.T) {
	app := fiber.New()
	app.Get("/public", jwtware.New(jwtware.Config{
		TokenValidator: validatorFor("good", claimsStub{}),
		Filter:         func(*fiber.Ctx) bool { return true },
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/public", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestJWTWare_RequiredRole(t *testing.T) {
	client := claimsStub{subject: "c@x.com", roles: []string{"CLIENT"}}
	app := newApp(jwtware.Config{
		TokenValidator: validatorFor("good", client),
		RequiredRole:   "ADMIN",
	})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, _ := do(t, app, req)
	assert.Equal(t, fiber.StatusForbidden, status)

	admin := claimsStub{subject: "d@x.com", roles: []string{"ADMIN"}}
	app = newApp(jwtware.Config{
		TokenValidator: validatorFor("good", admin),
		RequiredRole:   "ADMIN",
	})
	status, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestJWTWare_ContextEnricherAndListeners(t *testing.T) {
	type key struct{}
	var listened jwtware.AuthClaims
	claims := claimsStub{subject: "e@x.com"}

	app := fiber.New()
	app.Get("/private", jwtware.New(jwtware.Config{
		TokenValidator: validatorFor("good", claims),
		ContextEnricher: func(ctx context.Context, c jwtware.AuthClaims) context.Context {
			return context.WithValue(ctx, key{}, c.Subject())
		},
		ValidationListeners: []jwtware.ValidationListener{
			func(_ *fiber.Ctx, c jwtware.AuthClaims) error {
				listened = c
				return nil
			},
		},
	}), func(c *fiber.Ctx) error {
		v, _ := c.UserContext().Value(key{}).(string)
		return c.SendString(v)
	})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "e@x.com", body)
	require.NotNil(t, listened)
	assert.Equal(t, "e@x.com", listened.Subject())
}

func TestJWTWare_ListenerErrorRejects(t *testing.T) {
	app := fiber.New()
	app.Get("/private", jwtware.New(jwtware.Config{
		TokenValidator: validatorFor("good", claimsStub{}),
		ValidationListeners: []jwtware.ValidationListener{
			func(*fiber.Ctx, jwtware.AuthClaims) error { return errors.New("nope") },
		},
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer good")
	status, _ := do(t, app, req)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestJWTWare_RequiresValidator(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{})
	})
}
