package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"anoa.com/studentlms/internal/config"
	"anoa.com/studentlms/internal/entity"
	"anoa.com/studentlms/internal/testutil"
	"anoa.com/studentlms/pkg/mailer"
	"anoa.com/studentlms/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type app struct {
	ts   *httptest.Server
	srv  *Server
	db   *gorm.DB
	mail *mailer.Recorder
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	_, rdb := testutil.NewRedis(t)

	media := t.TempDir()
	imageStorage, err := storage.NewLocalStorage(media, "/media")
	require.NoError(t, err)

	cfg := &config.Config{
		AppEnv:            "test",
		AllowedOrigins:    "http://localhost:8080",
		SiteURL:           "http://lms.test",
		SecretKey:         "test-secret",
		SessionTTL:        time.Hour,
		SessionCookieName: "lms_session",
		PasswordResetTTL:  time.Hour,
		DefaultFromEmail:  "lms@example.com",
		StorageDriver:     config.StorageLocal,
		MediaRoot:         media,
		MediaURL:          "/media",
		LoginMaxAttempts:  5,
		LoginLockout:      time.Minute,
	}

	rec := mailer.NewRecorder()
	srv, err := NewServer(cfg, Dependencies{
		DB:           db,
		Redis:        rdb,
		Mailer:       rec,
		ImageStorage: imageStorage,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &app{ts: ts, srv: srv, db: db, mail: rec}
}

type browser struct {
	t    *testing.T
	base string
	http *http.Client
}

func (a *app) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: a.ts.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	status   int
	location string
	body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.http.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(raw)}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) login(username, password string) page {
	b.t.Helper()
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func registrationForm(username string) url.Values {
	return url.Values{
		"username":   {username},
		"first_name": {"Alice"},
		"last_name":  {"Smith"},
		"email":      {username + "@example.com"},
		"password1":  {"wonderland1"},
		"password2":  {"wonderland1"},
		"department": {"Physics"},
	}
}

func TestRegisterLoginAndDashboard(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	assert.Equal(t, http.StatusOK, b.get("/register").status)

	res := b.post("/register", registrationForm("alice"))
	require.Equal(t, http.StatusSeeOther, res.status, res.body)
	assert.Equal(t, "/login", res.location)

	res = b.get("/login")
	assert.Contains(t, res.body, "Registration successful! You can log in.")

	res = b.login("alice", "wonderland1")
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/student_dashboard", res.location)

	res = b.get("/student_dashboard")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Welcome back, alice!")
	assert.Contains(t, res.body, "Alice Smith")
	assert.Contains(t, res.body, "Physics")
	assert.Contains(t, res.body, storage.DefaultProfilePicture)

	a.srv.Wait()
	msgs := a.mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"alice@example.com"}, msgs[0].To)
}

func TestRegisterPasswordMismatchCreatesNothing(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	form := registrationForm("bob")
	form.Set("password2", "different1")
	res := b.post("/register", form)

	assert.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Contains(t, res.body, "The two password fields didn&#39;t match.")

	var count int64
	require.NoError(t, a.db.Model(&entity.User{}).Where("username = ?", "bob").Count(&count).Error)
	assert.Zero(t, count)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleStudent, "carol", "correct-horse")
	b := a.browser(t)

	for _, password := range []string{"wrong-password", ""} {
		res := b.login("carol", password)
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Contains(t, res.body, "Invalid username or password")
	}
	res := b.login("nobody", "whatever1")
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Contains(t, res.body, "Invalid username or password")
}

func TestRoleRedirects(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleAdmin, "root", "admin-pass1")
	testutil.CreateAccount(t, a.db, entity.RoleStudent, "dave", "student-pass1")

	anon := a.browser(t)
	for _, path := range []string{"/admin-dashboard", "/admin-dashboard/add", "/admin-dashboard/delete/1", "/student_dashboard", "/student/edit-profile"} {
		res := anon.get(path)
		assert.Equal(t, http.StatusSeeOther, res.status, path)
		assert.Equal(t, "/login", res.location, path)
	}

	student := a.browser(t)
	require.Equal(t, "/student_dashboard", student.login("dave", "student-pass1").location)
	res := student.get("/admin-dashboard")
	assert.Equal(t, "/student_dashboard", res.location)
	res = student.post("/admin-dashboard/block/1", nil)
	assert.Equal(t, "/student_dashboard", res.location)

	admin := a.browser(t)
	require.Equal(t, "/admin-dashboard", admin.login("root", "admin-pass1").location)
	res = admin.get("/student_dashboard")
	assert.Equal(t, "/admin-dashboard", res.location)
	assert.Equal(t, http.StatusOK, admin.get("/admin-dashboard").status)
}

func TestBlockedStudentIsLockedOut(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleAdmin, "root", "admin-pass1")
	erin := testutil.CreateAccount(t, a.db, entity.RoleStudent, "erin", "student-pass1")

	student := a.browser(t)
	require.Equal(t, "/student_dashboard", student.login("erin", "student-pass1").location)

	admin := a.browser(t)
	admin.login("root", "admin-pass1")
	res := admin.post(fmt.Sprintf("/admin-dashboard/block/%d", erin.Student.ID), nil)
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Contains(t, admin.get("/admin-dashboard").body, "Student blocked.")

	// the live session is gone
	assert.Equal(t, "/login", student.get("/student_dashboard").location)

	res = a.browser(t).login("erin", "student-pass1")
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Contains(t, res.body, "Invalid username or password")

	admin.get(fmt.Sprintf("/admin-dashboard/unblock/%d", erin.Student.ID))
	assert.Equal(t, "/student_dashboard", a.browser(t).login("erin", "student-pass1").location)
}

func TestDeleteStudent(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleAdmin, "root", "admin-pass1")
	frank := testutil.CreateAccount(t, a.db, entity.RoleStudent, "frank", "student-pass1")

	admin := a.browser(t)
	admin.login("root", "admin-pass1")

	path := fmt.Sprintf("/admin-dashboard/delete/%d", frank.Student.ID)
	res := admin.post(path, nil)
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/admin-dashboard", res.location)

	assert.Equal(t, http.StatusNotFound, admin.post(path, nil).status)
	assert.Equal(t, http.StatusNotFound, admin.get(fmt.Sprintf("/admin-dashboard/edit/%d", frank.Student.ID)).status)
	assert.Equal(t, http.StatusNotFound, admin.get("/admin-dashboard/edit/not-a-number").status)

	var count int64
	require.NoError(t, a.db.Model(&entity.User{}).Where("username = ?", "frank").Count(&count).Error)
	assert.Zero(t, count)
}

func TestAdminAddAndEditStudent(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleAdmin, "root", "admin-pass1")

	admin := a.browser(t)
	admin.login("root", "admin-pass1")

	res := admin.post("/admin-dashboard/add", registrationForm("grace"))
	require.Equal(t, http.StatusSeeOther, res.status, res.body)

	var user entity.User
	require.NoError(t, a.db.Preload("Student").Where("username = ?", "grace").First(&user).Error)
	require.NotNil(t, user.Student)

	editPath := fmt.Sprintf("/admin-dashboard/edit/%d", user.Student.ID)
	assert.Contains(t, admin.get(editPath).body, `value="grace@example.com"`)

	res = admin.post(editPath, url.Values{"email": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)

	res = admin.post(editPath, url.Values{"email": {"grace@uni.test"}, "first_name": {"Grace"}, "year": {"2026"}})
	require.Equal(t, http.StatusSeeOther, res.status, res.body)

	require.NoError(t, a.db.Preload("Student").Where("username = ?", "grace").First(&user).Error)
	assert.Equal(t, "grace@uni.test", user.Email)
	require.NotNil(t, user.Student.Year)
	assert.Equal(t, "2026", *user.Student.Year)
}

func TestAdminSearchAndPagination(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleAdmin, "root", "admin-pass1")
	for i := 1; i <= 8; i++ {
		testutil.CreateAccount(t, a.db, entity.RoleStudent, fmt.Sprintf("student%02d", i), "student-pass1")
	}
	testutil.CreateAccount(t, a.db, entity.RoleStudent, "MixedCase", "student-pass1")

	admin := a.browser(t)
	admin.login("root", "admin-pass1")

	res := admin.get("/admin-dashboard?q=mixedcase")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "MixedCase")
	assert.NotContains(t, res.body, "student01")

	res = admin.get("/admin-dashboard")
	assert.Contains(t, res.body, "student06")
	assert.NotContains(t, res.body, "student07")

	// past the end clamps to the last page
	res = admin.get("/admin-dashboard?page=99")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "student07")
	assert.Contains(t, res.body, "MixedCase")
	assert.NotContains(t, res.body, "student01")

	res = admin.get("/admin-dashboard?page=abc")
	assert.Contains(t, res.body, "student01")

	res = admin.get("/admin-dashboard?q=nothing-matches")
	assert.Contains(t, res.body, "No students found.")
}

func TestStudentEditsOwnProfile(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleStudent, "heidi", "student-pass1")

	b := a.browser(t)
	b.login("heidi", "student-pass1")

	assert.Equal(t, http.StatusOK, b.get("/student/edit-profile").status)

	res := b.post("/student/edit-profile", url.Values{
		"email":       {"heidi@uni.test"},
		"first_name":  {"Heidi"},
		"roll_number": {"R-42"},
	})
	require.Equal(t, http.StatusSeeOther, res.status, res.body)
	assert.Equal(t, "/student_dashboard", res.location)

	res = b.get("/student_dashboard")
	assert.Contains(t, res.body, "Your profile has been updated.")
	assert.Contains(t, res.body, "R-42")
	assert.Contains(t, res.body, "heidi@uni.test")
}

func TestLogout(t *testing.T) {
	a := newApp(t)
	testutil.CreateAccount(t, a.db, entity.RoleStudent, "ivan", "student-pass1")

	b := a.browser(t)
	b.login("ivan", "student-pass1")
	require.Equal(t, http.StatusOK, b.get("/student_dashboard").status)

	res := b.get("/logout")
	assert.Equal(t, "/login", res.location)
	assert.Contains(t, b.get("/login").body, "You have been logged out.")
	assert.Equal(t, "/login", b.get("/student_dashboard").location)
}

func TestPasswordResetPages(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	assert.Equal(t, http.StatusOK, b.get("/password-reset").status)

	res := b.post("/password-reset", url.Values{"email": {"nobody@example.com"}})
	assert.Equal(t, http.StatusSeeOther, res.status)

	res = b.post("/password-reset", url.Values{"email": {"not-an-email"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)

	res = b.get("/password-reset/confirm?token=garbage")
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.body, "invalid or has expired")
}

func TestHealthAndNotFound(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	res := b.get("/healthz")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `"database":"ok"`)

	assert.Equal(t, http.StatusNotFound, b.get("/no/such/page").status)
	assert.Equal(t, http.StatusOK, b.get("/static/css/site.css").status)
}
