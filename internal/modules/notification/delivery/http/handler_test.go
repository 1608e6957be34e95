package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anoa.com/studentlms/internal/access"
	notifService "anoa.com/studentlms/internal/modules/notification/service"
	"anoa.com/studentlms/internal/testutil"
	"anoa.com/studentlms/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://lms.example.com/"})

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://internal:8080/admin-dashboard/events", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("")))
	assert.True(t, check(req("https://lms.example.com")))
	assert.True(t, check(req("http://internal:8080")))
	assert.False(t, check(req("https://evil.example.com")))

	assert.True(t, originChecker([]string{"*"})(req("https://anything.test")))
}

func TestStudentEventsStreamsPublishedEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, rdb := testutil.NewRedis(t)

	h := NewNotificationHandler(rdb, nil)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		identity := &access.Identity{AccountID: uuid.New(), Username: "root", Role: access.RoleAdmin}
		c.Request = c.Request.WithContext(access.WithIdentity(c.Request.Context(), identity))
	})
	router.GET("/events", h.StudentEvents)

	ts := httptest.NewServer(router)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.Eventually(t, func() bool {
		subs, err := rdb.PubSubNumSub(ctx, notifService.StudentEventsChannel).Result()
		return err == nil && subs[notifService.StudentEventsChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	notify := notifService.NewNotificationService(nil, "", rdb)
	notify.PublishStudentEvent(ctx, notifService.StudentEvent{Type: notifService.EventStudentBlocked, ProfileID: 3, Username: "alice"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"student.blocked"`)
	assert.Contains(t, string(payload), `"alice"`)
}

func TestStudentEventsRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, rdb := testutil.NewRedis(t)

	router := gin.New()
	tmpl, err := web.Templates()
	require.NoError(t, err)
	router.SetHTMLTemplate(tmpl)
	router.GET("/events", NewNotificationHandler(rdb, nil).StudentEvents)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
