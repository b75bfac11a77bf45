package middleware

import (
	"errors"
	"fmt"
	"time"

	"billbook/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const tokenContextKey = "user"

// Authenticator validates bearer tokens and puts the subject on the request context.
// Tokens are verified with a JWKS endpoint when one is configured, otherwise with an HS256 secret.
type Authenticator struct {
	secret []byte
	jwks   *keyfunc.JWKS
	log    zerolog.Logger
}

func NewAuthenticator(secret, jwksURL string, logger zerolog.Logger) (*Authenticator, error) {
	a := &Authenticator{secret: []byte(secret), log: logger}
	if jwksURL == "" {
		if secret == "" {
			return nil, errors.New("jwt secret or jwks url is required")
		}
		return a, nil
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute,
		RefreshTimeout:   10 * time.Second,
		RefreshErrorHandler: func(err error) {
			logger.Error().Err(err).Str("jwks_url", jwksURL).Msg("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks: %w", err)
	}
	a.jwks = jwks
	return a, nil
}

// Close stops the JWKS background refresh.
func (a *Authenticator) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

func (a *Authenticator) config() echojwt.Config {
	cfg := echojwt.Config{
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(jwt.RegisteredClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			a.log.Debug().Err(err).Str("path", c.Path()).Msg("rejected token")
			return common.SendUnauthorizedError(c)
		},
	}
	if a.jwks != nil {
		cfg.KeyFunc = a.jwks.Keyfunc
	} else {
		cfg.SigningKey = a.secret
		cfg.SigningMethod = jwt.SigningMethodHS256.Alg()
	}
	return cfg
}

// Middleware verifies the token and then requires a UUID subject.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	verify := echojwt.WithConfig(a.config())
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(userFromToken(next))
	}
}

func userFromToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get(tokenContextKey).(*jwt.Token)
		if !ok {
			return common.SendUnauthorizedError(c)
		}
		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			return common.SendUnauthorizedError(c)
		}
		userID, err := uuid.Parse(claims.Subject)
		if err != nil || userID == uuid.Nil {
			return common.SendUnauthorizedError(c)
		}

		c.SetRequest(c.Request().WithContext(common.WithUserID(c.Request().Context(), userID)))
		return next(c)
	}
}
