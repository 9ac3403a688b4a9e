package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const actorKey = "actor_id"

var (
	errMissingToken = errors.New("missing bearer token")
	errNoSubject    = errors.New("token has no subject")
)

// AuthConfig configures how the actor identity is established
type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	DevActorHeader string
}

// Authenticator resolves the calling actor from the request
type Authenticator struct {
	secret    []byte
	issuer    string
	devHeader string
	logger    *zap.Logger
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(cfg AuthConfig, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.JWTIssuer,
		devHeader: cfg.DevActorHeader,
		logger:    logger,
	}
}

// Middleware rejects requests without a resolvable actor with 401
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := a.resolve(c.Request)
		if err != nil {
			a.logger.Debug("Unauthenticated request",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "Unauthorized",
			})
			return
		}
		c.Set(actorKey, actorID)
		c.Next()
	}
}

func (a *Authenticator) resolve(r *http.Request) (string, error) {
	if a.devHeader != "" {
		if id := strings.TrimSpace(r.Header.Get(a.devHeader)); id != "" {
			return id, nil
		}
	}

	raw, ok := bearerToken(r)
	if !ok {
		return "", errMissingToken
	}
	if len(a.secret) == 0 {
		return "", errors.New("token authentication is not configured")
	}
	return a.subject(raw)
}

// subject validates an HS256 token and returns its sub claim
func (a *Authenticator) subject(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return "", errNoSubject
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// ActorID returns the authenticated actor for the request
func ActorID(c *gin.Context) string {
	return c.GetString(actorKey)
}
