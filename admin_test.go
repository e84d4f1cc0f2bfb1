package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/store"
)

func login(t *testing.T, r http.Handler, user, pass string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {user}, "password": {pass}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(r, req)
}

func adminCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "admin_token" {
			return c
		}
	}
	t.Fatal("no admin_token cookie")
	return nil
}

func TestAdminRequiresLogin(t *testing.T) {
	_, r := newTestSite(t, okDispatcher())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	_, r := newTestSite(t, okDispatcher())

	w := login(t, r, "owner", "wrong")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestAdminDashboard(t *testing.T) {
	s, r := newTestSite(t, okDispatcher())
	ctx := context.Background()
	require.NoError(t, s.db.RecordSubmission(ctx, store.Submission{
		ID: "sub-1", HashedEmail: "abc", Relay: "test", Outcome: "success", Timestamp: time.Now(),
	}))

	w := login(t, r, "owner", "secret")
	require.Equal(t, http.StatusFound, w.Code)
	cookie := adminCookie(t, w)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(cookie)
	w = serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dashboard")
	assert.Contains(t, w.Body.String(), "sub-sub-1")
}

func TestAdminDeleteSubmission(t *testing.T) {
	s, r := newTestSite(t, okDispatcher())
	ctx := context.Background()
	require.NoError(t, s.db.RecordSubmission(ctx, store.Submission{
		ID: "sub-1", HashedEmail: "abc", Relay: "test", Outcome: "failure", Timestamp: time.Now(),
	}))
	cookie := adminCookie(t, login(t, r, "owner", "secret"))

	req := httptest.NewRequest(http.MethodDelete, "/admin/submissions/sub-1", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/admin/submissions/sub-1", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusNotFound, serve(r, req).Code)
}

func TestPrivacyPage(t *testing.T) {
	_, r := newTestSite(t, okDispatcher())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/privacy", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Privacy Policy")
}

func TestVisitorTracking(t *testing.T) {
	s, r := newTestSite(t, okDispatcher())

	serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

	dnt := httptest.NewRequest(http.MethodGet, "/", nil)
	dnt.Header.Set("DNT", "1")
	serve(r, dnt)

	var visits []store.Visit
	require.Eventually(t, func() bool {
		var err error
		visits, err = s.db.RecentVisitors(context.Background(), 10)
		return err == nil && len(visits) > 0
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	visits, err := s.db.RecentVisitors(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "/", visits[0].Path)
	assert.NotContains(t, visits[0].HashedIP, ".")
}

func TestAdminHashIsStable(t *testing.T) {
	a := newAdminAuth(config.AdminConfig{Username: "owner", Password: "secret"})
	assert.Equal(t, a.hash("Jane@Example.com"), a.hash("jane@example.com"))
	assert.Len(t, a.hash("x"), 16)
	assert.NotEqual(t, a.hash("a"), a.hash("b"))
}

func TestAdminVisitorsPage(t *testing.T) {
	s, r := newTestSite(t, okDispatcher())
	require.NoError(t, s.db.RecordVisit(context.Background(), store.Visit{
		HashedIP: "deadbeefcafef00d", UserAgent: "test-agent", Path: "/", Timestamp: time.Now(),
	}))
	cookie := adminCookie(t, login(t, r, "owner", "secret"))

	req := httptest.NewRequest(http.MethodGet, "/admin/visitors", nil)
	req.AddCookie(cookie)
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deadbeefcafef00d")
	assert.Contains(t, w.Body.String(), "test-agent")
}

func TestAdminDisabledWithoutCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newAdminAuth(config.AdminConfig{})
	assert.False(t, a.enabled)

	s, r := newTestSite(t, okDispatcher())
	s.admin = a
	r = newRouter(s)

	assert.Equal(t, http.StatusNotFound, login(t, r, "admin", "admin123").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/privacy", nil)).Code)
}

func TestAdminDefaultsInDebugMode(t *testing.T) {
	gin.SetMode(gin.DebugMode)
	defer gin.SetMode(gin.TestMode)

	a := newAdminAuth(config.AdminConfig{})
	assert.True(t, a.enabled)
	assert.True(t, a.checkCredentials("admin", "admin123"))
}
