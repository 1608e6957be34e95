package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"anoa.com/studentlms/internal/access"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver map[string]*access.Identity

func (r staticResolver) ResolveSession(_ context.Context, sessionID string) (*access.Identity, error) {
	return r[sessionID], nil
}

func newRouter(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Resolve())

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/admin-dashboard", m.Require(access.RoleAdmin), ok)
	r.GET("/student_dashboard", m.Require(access.RoleStudent), ok)
	return r
}

func get(r http.Handler, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "lms_session", Value: cookie})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequire(t *testing.T) {
	resolver := staticResolver{
		"admin-token":   {AccountID: uuid.New(), Username: "root", Role: access.RoleAdmin},
		"student-token": {AccountID: uuid.New(), Username: "alice", Role: access.RoleStudent},
	}
	r := newRouter(NewAuthMiddleware(resolver, "", false))

	cases := []struct {
		name, path, cookie string
		wantCode           int
		wantLocation       string
	}{
		{"anonymous admin page", "/admin-dashboard", "", http.StatusSeeOther, "/login"},
		{"anonymous student page", "/student_dashboard", "", http.StatusSeeOther, "/login"},
		{"unknown token", "/student_dashboard", "stale", http.StatusSeeOther, "/login"},
		{"student on admin page", "/admin-dashboard", "student-token", http.StatusSeeOther, "/student_dashboard"},
		{"admin on student page", "/student_dashboard", "admin-token", http.StatusSeeOther, "/admin-dashboard"},
		{"admin admitted", "/admin-dashboard", "admin-token", http.StatusOK, ""},
		{"student admitted", "/student_dashboard", "student-token", http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, tc.path, tc.cookie)
			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantLocation, w.Header().Get("Location"))
		})
	}
}

func TestResolveClearsStaleCookie(t *testing.T) {
	r := newRouter(NewAuthMiddleware(staticResolver{}, "", false))

	w := get(r, "/student_dashboard", "stale")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "lms_session", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
