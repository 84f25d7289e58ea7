package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kilianp07/vendpoint/core/ledger"
)

const (
	// AdminRole is carried by operator tokens signed with the admin secret.
	AdminRole = "admin"
	// UserRole is carried by user tokens; the subject is the user id.
	UserRole = "user"
)

// Claims are carried by admin and user bearer tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueAdminToken signs an HS256 admin token valid for ttl.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("admin secret not configured")
	}
	return issue(secret, AdminRole, subject, ttl)
}

// IssueUserToken signs an HS256 token for the user id, valid for ttl.
func IssueUserToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("user secret not configured")
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}
	return issue(secret, UserRole, userID, ttl)
}

func issue(secret, role, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "vendpoint",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAdminToken validates the signature, expiry and role of a token.
func ParseAdminToken(secret, token string) (*Claims, error) {
	return parse(secret, token, AdminRole)
}

// ParseUserToken validates a user token and returns its claims.
func ParseUserToken(secret, token string) (*Claims, error) {
	claims, err := parse(secret, token, UserRole)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func parse(secret, token, role string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != role {
		return nil, fmt.Errorf("role %q is not allowed", claims.Role)
	}
	return claims, nil
}

func tokenError(c *gin.Context, err error) {
	c.Header("WWW-Authenticate", "Bearer")
	if errors.Is(err, jwt.ErrTokenExpired) {
		fail(c, http.StatusUnauthorized, "token expired")
		return
	}
	fail(c, http.StatusUnauthorized, "invalid token")
}

// requireAdmin admits operator tokens, and user tokens whose user is an
// enabled admin when users are configured.
func requireAdmin(adminSecret, userSecret string, users ledger.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			c.Header("WWW-Authenticate", "Bearer")
			fail(c, http.StatusUnauthorized, "missing authorization header")
			return
		}
		var err error
		if adminSecret != "" {
			var claims *Claims
			if claims, err = ParseAdminToken(adminSecret, tok); err == nil {
				c.Set("admin", claims.Subject)
				c.Next()
				return
			}
		}
		if userSecret != "" && users != nil {
			var claims *Claims
			if claims, err = ParseUserToken(userSecret, tok); err == nil {
				u, uerr := users.GetUser(c.Request.Context(), claims.Subject)
				if uerr != nil || !u.Enabled || !u.IsAdmin {
					fail(c, http.StatusForbidden, "admin privileges required")
					return
				}
				c.Set("admin", u.ID)
				c.Next()
				return
			}
		}
		tokenError(c, err)
	}
}

// requireUser admits enabled users holding a user token. Unknown subjects
// are registered on first use.
func requireUser(secret string, users ledger.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			c.Header("WWW-Authenticate", "Bearer")
			fail(c, http.StatusUnauthorized, "missing authorization header")
			return
		}
		claims, err := ParseUserToken(secret, tok)
		if err != nil {
			tokenError(c, err)
			return
		}
		u, err := users.EnsureUser(c.Request.Context(), claims.Subject)
		if err != nil {
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, "user lookup failed")
			return
		}
		if !u.Enabled {
			fail(c, http.StatusForbidden, ledger.ErrUserDisabled.Error())
			return
		}
		c.Set(userContext, u)
		c.Next()
	}
}

const userContext = "user"

func userFrom(c *gin.Context) ledger.User {
	v, _ := c.Get(userContext)
	u, _ := v.(ledger.User)
	return u
}
