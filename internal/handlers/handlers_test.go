package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"todoTracker/internal/auth"
	"todoTracker/internal/handlers"
	"todoTracker/internal/media"
	"todoTracker/internal/middleware"
	"todoTracker/internal/models/task"
	"todoTracker/internal/models/user"
	repo "todoTracker/internal/repository"
	"todoTracker/internal/repository/inmemory"
	"todoTracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Tr1cky-Orange-Lamp"

type testApp struct {
	router   http.Handler
	store    *inmemory.Storage
	tasks    *service.TaskService
	accounts *service.AccountService
	media    afero.Fs
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	store := inmemory.NewStorage()
	mediaFs := afero.NewMemMapFs()
	avatars := media.NewAvatarStoreFs(mediaFs, 1<<20)
	accounts := service.NewAccountService(store.Users(), store.Profiles(), auth.NewPasswordHasher(bcrypt.MinCost), avatars)
	tasks := service.NewTaskService(store.Tasks())
	sessions := auth.NewSessionManager(auth.SessionConfig{SecretKey: "test-secret"})

	h, err := handlers.New(tasks, accounts, sessions, handlers.Options{Media: mediaFs, MaxAvatarBytes: 1 << 20})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.Authenticate(sessions, accounts))
	h.Routes(r)

	return &testApp{router: r, store: store, tasks: tasks, accounts: accounts, media: mediaFs}
}

// browser replays cookies between requests the way a real client would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (a *testApp) browser(t *testing.T) *browser {
	return &browser{t: t, handler: a.router, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil, "")
}

// csrfToken returns the CSRF cookie, visiting the home page first to get one.
func (b *browser) csrfToken() string {
	if _, ok := b.cookies[middleware.CSRFCookieName]; !ok {
		b.get("/")
	}
	c, ok := b.cookies[middleware.CSRFCookieName]
	require.True(b.t, ok, "home page did not set a CSRF cookie")
	return c.Value
}

// post submits form the way a rendered page would, CSRF field included.
func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	values := url.Values{middleware.CSRFFieldName: {b.csrfToken()}}
	for k, v := range form {
		values[k] = v
	}
	return b.postRaw(target, values)
}

func (b *browser) postRaw(target string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, target, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func registration(username string) url.Values {
	return url.Values{
		"username":   {username},
		"email":      {username + "@example.com"},
		"first_name": {"Test"},
		"last_name":  {"User"},
		"password1":  {testPassword},
		"password2":  {testPassword},
	}
}

// signUp registers username, logs in and returns the stored user.
func (a *testApp) signUp(t *testing.T, b *browser, username string) *user.User {
	t.Helper()

	rec := b.post("/register/", registration(username))
	require.Equal(t, http.StatusFound, rec.Code)

	rec = b.post("/login/", url.Values{"username": {username}, "password": {testPassword}})
	require.Equal(t, http.StatusFound, rec.Code)

	u, err := a.store.Users().GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return u
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec := app.browser(t).get("/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHomeAndAboutArePublic(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	rec := b.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome to Todo App")

	rec = b.get("/about/")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedPagesRedirectAnonymous(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	for _, target := range []string{"/tasks/", "/task/create/", "/task/1/", "/profile/"} {
		rec := b.get(target)
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "/login/?next="+url.QueryEscape(target), rec.Header().Get("Location"), target)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	rec := b.post("/register/", registration("alice"))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/", rec.Header().Get("Location"))

	rec = b.get("/login/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account created successfully for alice! You can now log in.")

	// The flash is shown once.
	rec = b.get("/login/")
	assert.NotContains(t, rec.Body.String(), "Account created successfully")

	rec = b.post("/login/", url.Values{"username": {"alice"}, "password": {testPassword}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/tasks/", rec.Header().Get("Location"))
	assert.Contains(t, b.cookies, auth.SessionCookieName)

	rec = b.get("/tasks/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No tasks found.")

	rec = b.get("/register/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/tasks/", rec.Header().Get("Location"))
}

func TestRegisterPasswordMismatch(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	form := registration("carol")
	form.Set("password2", "Different-Pass-99")

	rec := b.post("/register/", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "The two password fields didn")
	_, err := app.store.Users().GetByUsername(context.Background(), "carol")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	require.Equal(t, http.StatusFound, b.post("/register/", registration("dave")).Code)

	rec := b.post("/register/", registration("DAVE"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A user with that username already exists.")
}

func TestLoginInvalidCredentials(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	require.Equal(t, http.StatusFound, b.post("/register/", registration("erin")).Code)

	rec := b.post("/login/", url.Values{"username": {"erin"}, "password": {"wrong-password"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter a correct username and password.")
	assert.NotContains(t, b.cookies, auth.SessionCookieName)
}

func TestLoginRedirectsToNext(t *testing.T) {
	tests := []struct {
		name     string
		next     string
		expected string
	}{
		{name: "local path", next: "/task/create/", expected: "/task/create/"},
		{name: "protocol relative", next: "//evil.example.com/", expected: "/tasks/"},
		{name: "absolute url", next: "https://evil.example.com/", expected: "/tasks/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			b := app.browser(t)
			require.Equal(t, http.StatusFound, b.post("/register/", registration("frank")).Code)

			rec := b.post("/login/", url.Values{
				"username": {"frank"},
				"password": {testPassword},
				"next":     {tt.next},
			})

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.expected, rec.Header().Get("Location"))
		})
	}
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	app.signUp(t, b, "gina")

	rec := b.post("/logout/", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.NotContains(t, b.cookies, auth.SessionCookieName)

	rec = b.get("/tasks/")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	u := app.signUp(t, b, "hank")

	rec := b.post("/task/create/", url.Values{
		"title":       {"Buy milk"},
		"description": {"Two litres"},
		"priority":    {"high"},
		"status":      {"pending"},
		"due_date":    {"2030-01-15"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/tasks/", rec.Header().Get("Location"))

	rec = b.get("/tasks/")
	assert.Contains(t, rec.Body.String(), "Task created successfully!")
	assert.Contains(t, rec.Body.String(), "Buy milk")

	page, err := app.tasks.ListTasks(context.Background(), u.ID, task.ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	created := page.Tasks[0]
	assert.Equal(t, task.PriorityHigh, created.Priority)
	require.NotNil(t, created.DueDate)
	detailURL := fmt.Sprintf("/task/%d/", created.ID)

	rec = b.get(detailURL)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Two litres")

	rec = b.get(detailURL + "update/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Buy milk"`)

	rec = b.post(detailURL+"update/", url.Values{
		"title":    {"Buy oat milk"},
		"priority": {"low"},
		"status":   {"in_progress"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	rec = b.get(detailURL)
	assert.Contains(t, rec.Body.String(), "Task updated successfully!")
	assert.Contains(t, rec.Body.String(), "Buy oat milk")

	rec = b.post(detailURL+"toggle/", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	rec = b.get("/tasks/")
	assert.Contains(t, rec.Body.String(), "marked as completed!")

	toggled, err := app.tasks.GetTask(context.Background(), u.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, toggled.Status)
	assert.NotNil(t, toggled.CompletedAt)

	rec = b.post(detailURL+"toggle/", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	rec = b.get("/tasks/")
	assert.Contains(t, rec.Body.String(), "marked as pending.")

	rec = b.get(detailURL + "delete/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Are you sure")

	rec = b.post(detailURL+"delete/", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	rec = b.get("/tasks/")
	assert.Contains(t, rec.Body.String(), "Task deleted successfully!")

	rec = b.get(detailURL)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	u := app.signUp(t, b, "iris")

	rec := b.post("/task/create/", url.Values{"title": {"   "}, "priority": {"urgent"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required.")
	assert.Contains(t, rec.Body.String(), "Select a valid choice.")

	stats, err := app.tasks.Stats(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestUpdateTaskWithoutStatusKeepsTask(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	u := app.signUp(t, b, "ivan")
	ctx := context.Background()

	created, err := app.tasks.CreateTask(ctx, u.ID, task.WithTitle("Ship release"), task.WithPriority(task.PriorityHigh))
	require.NoError(t, err)
	done, err := app.tasks.MarkCompleted(ctx, u.ID, created.ID)
	require.NoError(t, err)

	rec := b.post(fmt.Sprintf("/task/%d/update/", created.ID), url.Values{"title": {"Ship release 2"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required.")

	unchanged, err := app.tasks.GetTask(ctx, u.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ship release", unchanged.Title)
	assert.Equal(t, task.PriorityHigh, unchanged.Priority)
	assert.Equal(t, task.StatusCompleted, unchanged.Status)
	require.NotNil(t, unchanged.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(*unchanged.CompletedAt))
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	app := newTestApp(t)
	owner := app.browser(t)
	intruder := app.browser(t)
	ownerUser := app.signUp(t, owner, "jack")
	app.signUp(t, intruder, "kate")

	created, err := app.tasks.CreateTask(context.Background(), ownerUser.ID, task.WithTitle("Private"))
	require.NoError(t, err)
	base := fmt.Sprintf("/task/%d/", created.ID)

	assert.Equal(t, http.StatusNotFound, intruder.get(base).Code)
	assert.Equal(t, http.StatusNotFound, intruder.get(base+"update/").Code)
	assert.Equal(t, http.StatusNotFound, intruder.post(base+"update/", url.Values{"title": {"Hijacked"}}).Code)
	assert.Equal(t, http.StatusNotFound, intruder.post(base+"toggle/", nil).Code)
	assert.Equal(t, http.StatusNotFound, intruder.post(base+"delete/", nil).Code)

	survivor, err := app.tasks.GetTask(context.Background(), ownerUser.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", survivor.Title)
	assert.Equal(t, task.StatusPending, survivor.Status)

	rec := intruder.get("/tasks/")
	assert.NotContains(t, rec.Body.String(), "Private")
}

func TestTaskListFiltersAndPaging(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	u := app.signUp(t, b, "liam")
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		opts := []task.TaskOption{task.WithTitle(fmt.Sprintf("Chore %02d", i))}
		if i%4 == 0 {
			opts = append(opts, task.WithPriority(task.PriorityHigh))
		}
		_, err := app.tasks.CreateTask(ctx, u.ID, opts...)
		require.NoError(t, err)
	}
	_, err := app.tasks.CreateTask(ctx, u.ID, task.WithTitle("Groceries"), task.WithDescription("buy MILK and eggs"))
	require.NoError(t, err)

	rec := b.get("/tasks/?priority=high")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Chore 04")
	assert.Contains(t, body, "Chore 12")
	assert.NotContains(t, body, "Chore 01")

	rec = b.get("/tasks/?search=milk")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Groceries")
	assert.NotContains(t, rec.Body.String(), "Chore")

	rec = b.get("/tasks/")
	assert.Contains(t, rec.Body.String(), "Page 1 of 2")

	rec = b.get("/tasks/?page=last")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page 2 of 2")

	assert.Equal(t, http.StatusOK, b.get("/tasks/?page=2").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/tasks/?page=3").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/tasks/?page=abc").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/tasks/?page=0").Code)
}

func TestEmptyTaskListFirstPage(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	app.signUp(t, b, "mona")

	assert.Equal(t, http.StatusOK, b.get("/tasks/?page=1").Code)
	assert.Equal(t, http.StatusOK, b.get("/tasks/?page=last").Code)
	assert.Equal(t, http.StatusNotFound, b.get("/tasks/?page=2").Code)
}

func TestHomeShowsCounts(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	u := app.signUp(t, b, "nora")

	_, err := app.tasks.CreateTask(context.Background(), u.ID, task.WithTitle("One"), task.WithStatus(task.StatusCompleted))
	require.NoError(t, err)

	rec := b.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>1</strong> total tasks")
	assert.Contains(t, rec.Body.String(), "<strong>1</strong> completed")
}

func TestStatsJSON(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	u := app.signUp(t, b, "omar")

	_, err := app.tasks.CreateTask(context.Background(), u.ID, task.WithTitle("Urgent"), task.WithPriority(task.PriorityHigh))
	require.NoError(t, err)

	rec := b.get("/stats/")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stats struct {
			Total        int `json:"total"`
			HighPriority int `json:"high_priority"`
		} `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Stats.Total)
	assert.Equal(t, 1, body.Stats.HighPriority)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func profileUpload(t *testing.T, fields map[string]string, avatar []byte) (io.Reader, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if avatar != nil {
		fw, err := mw.CreateFormFile("avatar", "me.png")
		require.NoError(t, err)
		_, err = fw.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestProfileUpdateWithAvatar(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	u := app.signUp(t, b, "pete")

	rec := b.get("/profile/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="pete"`)

	body, contentType := profileUpload(t, map[string]string{
		middleware.CSRFFieldName: b.csrfToken(),
		"username":               "peter",
		"email":                  "peter@example.com",
		"first_name":             "Peter",
		"last_name":              "Parker",
		"bio":                    "Photographer",
		"phone_number":           "+1 555 0100",
		"birth_date":             "1990-08-10",
	}, pngBytes(t))

	rec = b.do(http.MethodPost, "/profile/", body, contentType)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/profile/", rec.Header().Get("Location"))

	rec = b.get("/profile/")
	assert.Contains(t, rec.Body.String(), "Your profile has been updated successfully!")
	assert.Contains(t, rec.Body.String(), "Peter Parker")

	updated, err := app.store.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "peter", updated.Username)

	profile, err := app.accounts.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Photographer", profile.Bio)
	require.NotNil(t, profile.BirthDate)
	require.True(t, profile.HasAvatar())

	rec = b.get("/media/" + profile.Avatar)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, b.get("/media/avatars/").Code)
}

func TestProfileRejectsNonImage(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	app.signUp(t, b, "quinn")

	body, contentType := profileUpload(t, map[string]string{
		middleware.CSRFFieldName: b.csrfToken(),
		"username":               "quinn",
		"email":                  "quinn@example.com",
	}, []byte("definitely not an image"))

	rec := b.do(http.MethodPost, "/profile/", body, contentType)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upload a valid image.")
}

func TestProfileUsernameTaken(t *testing.T) {
	app := newTestApp(t)
	app.signUp(t, app.browser(t), "rose")
	b := app.browser(t)
	app.signUp(t, b, "sam")

	rec := b.post("/profile/", url.Values{"username": {"ROSE"}, "email": {"sam@example.com"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A user with that username already exists.")
}

func TestUnknownRouteRendersNotFoundPage(t *testing.T) {
	app := newTestApp(t)

	rec := app.browser(t).get("/no-such-page/")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404 Not Found")
}

func TestTamperedFlashCookieIsIgnored(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	b.cookies["messages"] = &http.Cookie{Name: "messages", Value: "%%%not-base64"}

	rec := b.get("/")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostRequiresCSRFToken(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	owner := app.signUp(t, b, "tina")
	tk, err := app.tasks.CreateTask(context.Background(), owner.ID, task.WithTitle("Keep me"))
	require.NoError(t, err)
	target := fmt.Sprintf("/task/%d/delete/", tk.ID)

	tests := []struct {
		name  string
		form  url.Values
		token string
	}{
		{name: "missing field", form: url.Values{}},
		{name: "wrong field", form: url.Values{middleware.CSRFFieldName: {"forged"}}},
		{name: "wrong header", form: url.Values{}, token: "forged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.token != "" {
				req.Header.Set(middleware.CSRFHeaderName, tt.token)
			}
			for _, c := range b.cookies {
				req.AddCookie(c)
			}
			rec := httptest.NewRecorder()
			app.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			_, err := app.tasks.GetTask(context.Background(), owner.ID, tk.ID)
			assert.NoError(t, err, "task must survive a rejected request")
		})
	}

	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.Header.Set(middleware.CSRFHeaderName, b.csrfToken())
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code, "the header is accepted in place of the field")
	_, err = app.tasks.GetTask(context.Background(), owner.ID, tk.ID)
	assert.True(t, service.IsNotFound(err))
}

func TestLoginWithoutCSRFCookieIsForbidden(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	require.Equal(t, http.StatusFound, b.post("/register/", registration("uma")).Code)
	delete(b.cookies, middleware.CSRFCookieName)

	rec := b.postRaw("/login/", url.Values{"username": {"uma"}, "password": {testPassword}})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, b.cookies, auth.SessionCookieName)
}

func TestPagesCarryCSRFToken(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	rec := b.get("/login/")
	require.Equal(t, http.StatusOK, rec.Code)
	token := b.cookies[middleware.CSRFCookieName]
	require.NotNil(t, token)
	assert.False(t, token.HttpOnly)
	assert.Contains(t, rec.Body.String(), `name="csrfmiddlewaretoken" value="`+token.Value+`"`)

	rec = b.get("/register/")
	assert.Empty(t, rec.Result().Cookies(), "an existing token is reused")
	assert.Contains(t, rec.Body.String(), token.Value)
}

func TestLoginRotatesCSRFToken(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	before := b.csrfToken()

	app.signUp(t, b, "vera")

	assert.NotEqual(t, before, b.csrfToken())
}

func TestLogoutRevokesSession(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	app.signUp(t, b, "walt")
	stolen := *b.cookies[auth.SessionCookieName]

	require.Equal(t, http.StatusFound, b.post("/logout/", nil).Code)

	b.cookies[auth.SessionCookieName] = &stolen
	rec := b.get("/tasks/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login/")
	assert.NotContains(t, b.cookies, auth.SessionCookieName, "the replayed cookie is cleared")
}

func TestLoginInactiveAccountLooksLikeBadPassword(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)
	hash, err := auth.NewPasswordHasher(bcrypt.MinCost).Hash(testPassword)
	require.NoError(t, err)
	inactiveUser := &user.User{Username: "xena", PasswordHash: hash, IsActive: false}
	require.NoError(t, app.store.Users().CreateWithProfile(context.Background(), inactiveUser, &user.Profile{}))

	inactive := b.post("/login/", url.Values{"username": {"xena"}, "password": {testPassword}})
	wrong := b.post("/login/", url.Values{"username": {"xena"}, "password": {"not-the-password"}})

	assert.Equal(t, http.StatusOK, inactive.Code)
	assert.Contains(t, inactive.Body.String(), "Please enter a correct username and password.")
	assert.NotContains(t, inactive.Body.String(), "inactive")
	assert.Equal(t, wrong.Code, inactive.Code)
	assert.NotContains(t, b.cookies, auth.SessionCookieName)
}
