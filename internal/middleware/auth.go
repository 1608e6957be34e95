package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"anoa.com/studentlms/internal/access"
	"anoa.com/studentlms/pkg/response"
	"github.com/gin-gonic/gin"
)

// SessionResolver maps a session token to its identity, or nil when the token
// no longer grants access.
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*access.Identity, error)
}

type AuthMiddleware struct {
	resolver   SessionResolver
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewAuthMiddleware(resolver SessionResolver, cookieName string, secure bool) *AuthMiddleware {
	if cookieName == "" {
		cookieName = "lms_session"
	}
	return &AuthMiddleware{
		resolver:   resolver,
		cookieName: cookieName,
		secure:     secure,
		now:        time.Now,
	}
}

// Resolve attaches the caller's identity to the request context when the
// session cookie is valid. It never rejects a request.
func (m *AuthMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(m.cookieName)
		if err != nil || sessionID == "" {
			c.Next()
			return
		}

		identity, err := m.resolver.ResolveSession(c.Request.Context(), sessionID)
		if err != nil {
			log.Printf("Failed to resolve session: %v", err)
			c.Next()
			return
		}

		if identity == nil {
			m.ClearSessionCookie(c)
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(access.WithIdentity(c.Request.Context(), identity))
		c.Set("user_id", identity.AccountID.String())
		c.Next()
	}
}

// Require admits only callers passing the role check and any extra guards;
// everyone else is redirected to the decision's target.
func (m *AuthMiddleware) Require(role access.Role, extra ...access.Guard) gin.HandlerFunc {
	guard := access.All(append([]access.Guard{access.RequireRole(role)}, extra...)...)

	return func(c *gin.Context) {
		identity, _ := access.FromContext(c.Request.Context())

		decision := guard(identity, m.now())
		if !decision.Admitted() {
			response.Redirect(c, decision.Target)
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) SetSessionCookie(c *gin.Context, sessionID string, expiresAt time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *AuthMiddleware) ClearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
