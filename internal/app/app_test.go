package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// browser replays requests against a handler, keeping cookies between them
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, handler http.Handler) *browser {
	return &browser{t: t, handler: handler, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) upload(filename string, content []byte) *httptest.ResponseRecorder {
	b.t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(b.t, err)
	_, err = part.Write(content)
	require.NoError(b.t, err)
	require.NoError(b.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func (b *browser) login(username, password string) *httptest.ResponseRecorder {
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func (b *browser) adminView() models.AdminDashboardView {
	b.t.Helper()
	rec := b.get("/admin")
	require.Equal(b.t, http.StatusOK, rec.Code)
	var view models.AdminDashboardView
	require.NoError(b.t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func requireRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, location, rec.Header().Get("Location"))
}

func hasNotice(notices []models.Notice, kind models.NoticeKind, message string) bool {
	for _, n := range notices {
		if n.Kind == kind && n.Message == message {
			return true
		}
	}
	return false
}

type testEnv struct {
	cfg *config.Config
	app *App
}

func setupApp(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	cfg := config.NewTestConfig(t.TempDir())

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, cfg.Database.Driver))

	a, err := New(context.Background(), cfg, db, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Bootstrap(context.Background()))
	// a second start must not create another admin
	require.NoError(t, a.Bootstrap(context.Background()))

	return &testEnv{cfg: cfg, app: a}
}

func (e *testEnv) storedFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.cfg.Upload.Dir)
	require.NoError(t, err)
	return len(entries)
}

func TestIntegration_LoginFlow(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env.app.Handler())

	requireRedirect(t, b.get("/"), "/login")
	requireRedirect(t, b.get("/user"), "/login?next=%2Fuser")
	requireRedirect(t, b.post("/upload", url.Values{}), "/login")

	// wrong password and unknown user look the same
	requireRedirect(t, b.login("admin", "wrong"), "/login")
	requireRedirect(t, b.login("nobody", "admin123"), "/login")

	rec := b.get("/login")
	require.Equal(t, http.StatusOK, rec.Code)
	var loginView models.LoginView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginView))
	assert.Equal(t, []models.Notice{
		{Kind: models.NoticeError, Message: "Invalid username or password."},
		{Kind: models.NoticeError, Message: "Invalid username or password."},
	}, loginView.Notices)

	requireRedirect(t, b.login("admin", "admin123"), "/admin")
	requireRedirect(t, b.get("/user"), "/admin")
	requireRedirect(t, b.get("/login"), "/admin")

	view := b.adminView()
	assert.Equal(t, "admin", view.Username)
	require.Len(t, view.Users, 1)
	assert.True(t, view.Users[0].IsAdmin)

	requireRedirect(t, b.get("/logout"), "/login")
	requireRedirect(t, b.get("/admin"), "/login?next=%2Fadmin")
}

func TestIntegration_UploadDownloadDelete(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env.app.Handler())
	requireRedirect(t, b.login("admin", "admin123"), "/admin")

	content := []byte("%PDF-1.4 quarterly numbers")
	requireRedirect(t, b.upload("report.PDF", content), "/admin")

	view := b.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeSuccess, "File uploaded successfully."))
	require.Len(t, view.Files, 1)
	file := view.Files[0]
	assert.Equal(t, "report.PDF", file.OriginalName)
	assert.Equal(t, "admin", file.Uploader)
	assert.Equal(t, int64(len(content)), file.Size)
	assert.Equal(t, "26 bytes", file.SizeDisplay)
	assert.Equal(t, 1, env.storedFiles(t))

	rec := b.get(fmt.Sprintf("/download/%d", file.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, "attachment; filename=report.PDF", rec.Header().Get("Content-Disposition"))

	// rejected uploads leave no trace
	requireRedirect(t, b.upload("virus.exe", []byte("MZ")), "/admin")
	requireRedirect(t, b.upload("README", []byte("text")), "/admin")
	view = b.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeError, "File type not allowed."))
	assert.Len(t, view.Files, 1)
	assert.Equal(t, 1, env.storedFiles(t))

	// same name twice gives two distinct files
	requireRedirect(t, b.upload("report.PDF", []byte("second")), "/admin")
	view = b.adminView()
	require.Len(t, view.Files, 2)
	assert.Equal(t, 2, env.storedFiles(t))

	deletePath := fmt.Sprintf("/admin/delete_file/%d", file.ID)
	requireRedirect(t, b.post(deletePath, nil), "/admin")
	view = b.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeSuccess, "File deleted successfully."))
	assert.Len(t, view.Files, 1)
	assert.Equal(t, 1, env.storedFiles(t))

	requireRedirect(t, b.post(deletePath, nil), "/admin")
	view = b.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeError, "File not found."))

	requireRedirect(t, b.get(fmt.Sprintf("/download/%d", file.ID)), "/admin")
	view = b.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeError, "File not found."))
}

func TestIntegration_UploadTooLarge(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env.app.Handler())
	requireRedirect(t, b.login("admin", "admin123"), "/admin")

	big := bytes.Repeat([]byte("x"), int(env.cfg.Upload.MaxSize)+1)
	requireRedirect(t, b.upload("big.txt", big), "/admin")

	view := b.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeError, "File too large."))
	assert.Empty(t, view.Files)
	assert.Equal(t, 0, env.storedFiles(t))
}

func TestIntegration_UserManagement(t *testing.T) {
	env := setupApp(t)
	admin := newBrowser(t, env.app.Handler())
	requireRedirect(t, admin.login("admin", "admin123"), "/admin")

	// self delete is rejected
	requireRedirect(t, admin.post("/admin/delete_user/1", nil), "/admin")
	view := admin.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeError, "You cannot delete your own account."))
	require.Len(t, view.Users, 1)

	// demoting the only admin is rejected
	requireRedirect(t, admin.post("/admin/update_user/1", url.Values{}), "/admin")
	view = admin.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeError, "At least one admin account must remain."))
	assert.True(t, view.Users[0].IsAdmin)

	requireRedirect(t, admin.post("/admin/create_user", url.Values{"username": {"alice"}, "password": {"alice-pass"}}), "/admin")
	requireRedirect(t, admin.post("/admin/create_user", url.Values{"username": {"alice"}, "password": {"other"}}), "/admin")
	view = admin.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeSuccess, "User created successfully."))
	assert.True(t, hasNotice(view.Notices, models.NoticeError, "This username already exists."))
	require.Len(t, view.Users, 2)
	alice := view.Users[1]
	assert.Equal(t, "alice", alice.Username)
	assert.False(t, alice.IsAdmin)

	user := newBrowser(t, env.app.Handler())
	requireRedirect(t, user.login("alice", "alice-pass"), "/user")

	// regular users are kept out of admin routes
	requireRedirect(t, user.get("/admin"), "/user")
	requireRedirect(t, user.post(fmt.Sprintf("/admin/delete_user/%d", 1), nil), "/user")

	requireRedirect(t, user.upload("notes.txt", []byte("hello")), "/user")
	rec := user.get("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	var dash models.UserDashboardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, "alice", dash.Username)
	assert.True(t, hasNotice(dash.Notices, models.NoticeError, "You do not have permission to access this page."))
	assert.True(t, hasNotice(dash.Notices, models.NoticeSuccess, "File uploaded successfully."))
	require.Len(t, dash.Files, 1)
	assert.Equal(t, "alice", dash.Files[0].Uploader)

	// own password change
	requireRedirect(t, user.post("/account/password", url.Values{"current_password": {"bad"}, "new_password": {"x"}}), "/user")
	requireRedirect(t, user.post("/account/password", url.Values{"current_password": {"alice-pass"}, "new_password": {"new-pass"}}), "/user")
	other := newBrowser(t, env.app.Handler())
	requireRedirect(t, other.login("alice", "alice-pass"), "/login")
	requireRedirect(t, other.login("alice", "new-pass"), "/user")

	// promotion applies on the next request
	requireRedirect(t, admin.post(fmt.Sprintf("/admin/update_user/%d", alice.ID), url.Values{"is_admin": {"on"}}), "/admin")
	requireRedirect(t, user.get("/user"), "/admin")
	requireRedirect(t, admin.post(fmt.Sprintf("/admin/update_user/%d", alice.ID), url.Values{}), "/admin")

	// deleting a user removes their files and ends their session
	requireRedirect(t, admin.post(fmt.Sprintf("/admin/delete_user/%d", alice.ID), nil), "/admin")
	view = admin.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeSuccess, "User deleted successfully."))
	assert.Len(t, view.Users, 1)
	assert.Empty(t, view.Files)
	assert.Equal(t, 0, env.storedFiles(t))

	requireRedirect(t, user.get("/user"), "/login?next=%2Fuser")
}

func TestIntegration_DownloadStreamsLargeFile(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env.app.Handler())
	requireRedirect(t, b.login("admin", "admin123"), "/admin")

	content := bytes.Repeat([]byte("0123456789"), 50_000)
	requireRedirect(t, b.upload("data.zip", content), "/admin")
	view := b.adminView()
	require.Len(t, view.Files, 1)
	assert.Equal(t, "488.28 KiB", view.Files[0].SizeDisplay)

	rec := b.get(fmt.Sprintf("/download/%d", view.Files[0].ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fmt.Sprint(len(content)), rec.Header().Get("Content-Length"))
	got, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestIntegration_UploadLongFilename(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env.app.Handler())
	requireRedirect(t, b.login("admin", "admin123"), "/admin")

	original := strings.Repeat("q", 250) + ".txt"
	requireRedirect(t, b.upload(original, []byte("long name")), "/admin")

	view := b.adminView()
	assert.True(t, hasNotice(view.Notices, models.NoticeSuccess, "File uploaded successfully."))
	require.Len(t, view.Files, 1)
	assert.Equal(t, original, view.Files[0].OriginalName)

	rec := b.get(fmt.Sprintf("/download/%d", view.Files[0].ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "long name", rec.Body.String())
}

func TestIntegration_SweepOrphans(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env.app.Handler())
	requireRedirect(t, b.login("admin", "admin123"), "/admin")
	requireRedirect(t, b.upload("notes.txt", []byte("kept")), "/admin")

	old := time.Now().Add(-2 * time.Hour)
	orphan := filepath.Join(env.cfg.Upload.Dir, "20240309120000_bbbbbbbb_orphan.txt")
	require.NoError(t, os.WriteFile(orphan, []byte("left behind"), 0644))
	require.NoError(t, os.Chtimes(orphan, old, old))
	fresh := filepath.Join(env.cfg.Upload.Dir, "20240309120000_cccccccc_fresh.txt")
	require.NoError(t, os.WriteFile(fresh, []byte("in flight"), 0644))
	foreign := filepath.Join(env.cfg.Upload.Dir, ".gitkeep")
	require.NoError(t, os.WriteFile(foreign, nil, 0644))
	require.NoError(t, os.Chtimes(foreign, old, old))

	removed, err := env.app.SweepOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, fresh)
	assert.FileExists(t, foreign)

	view := b.adminView()
	require.Len(t, view.Files, 1)
	rec := b.get(fmt.Sprintf("/download/%d", view.Files[0].ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kept", rec.Body.String())
}

func TestStartMaintenance(t *testing.T) {
	env := setupApp(t)

	s, err := env.app.StartMaintenance(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)

	env.app.cfg.Maintenance.SweepSchedule = "@hourly"
	s, err = env.app.StartMaintenance(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	s.Stop()

	env.app.cfg.Maintenance.SweepSchedule = "every now and then"
	_, err = env.app.StartMaintenance(context.Background())
	assert.Error(t, err)
}

func TestNewStorage(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		cfg := config.NewTestConfig(t.TempDir())

		store, err := NewStorage(context.Background(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, store)
		_, err = os.Stat(cfg.Upload.Dir)
		assert.NoError(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.NewTestConfig(t.TempDir())
		cfg.Storage.Backend = "ftp"

		store, err := NewStorage(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}
