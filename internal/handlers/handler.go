package handlers

import (
	"net/http"

	"todoTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
)

type Handler struct {
	tasks    TaskService
	accounts AccountService
	sessions Sessions

	renderer       *Renderer
	media          http.Handler
	maxAvatarBytes int64
	cookieSecure   bool
}

type Options struct {
	// Media is the root that uploaded avatars are served from; nil disables /media/.
	Media          afero.Fs
	MaxAvatarBytes int64
	// CookieSecure marks the CSRF cookie Secure.
	CookieSecure bool
}

func New(tasks TaskService, accounts AccountService, sessions Sessions, opts Options) (*Handler, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		tasks:          tasks,
		accounts:       accounts,
		sessions:       sessions,
		renderer:       renderer,
		maxAvatarBytes: opts.MaxAvatarBytes,
		cookieSecure:   opts.CookieSecure,
	}
	if opts.Media != nil {
		h.media = http.StripPrefix("/media/", http.FileServer(filesOnly{afero.NewHttpFs(opts.Media)}))
	}
	return h, nil
}

// Routes mounts every page on r. Authentication middleware must already be
// installed so the current user is in the request context. Every POST must
// carry the CSRF token rendered into its form.
func (h *Handler) Routes(r chi.Router) {
	r.Use(middleware.CSRF(middleware.CSRFOptions{
		Secure:       h.cookieSecure,
		MaxBodyBytes: h.maxAvatarBytes + multipartOverhead,
		Failure:      h.errorPage,
	}))

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/health", h.Health)
	if h.media != nil {
		r.Get("/media/*", h.media.ServeHTTP)
	}

	r.Get("/", h.Home)
	r.Get("/about/", h.About)
	r.Get("/register/", h.RegisterPage)
	r.Post("/register/", h.Register)
	r.Get("/login/", h.LoginPage)
	r.Post("/login/", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireLogin)

		r.Post("/logout/", h.Logout)
		r.Get("/profile/", h.ProfilePage)
		r.Post("/profile/", h.UpdateProfile)
		r.Get("/stats/", h.StatsJSON)

		r.Get("/tasks/", h.ListTasks)
		r.Get("/task/create/", h.CreateTaskPage)
		r.Post("/task/create/", h.CreateTask)
		r.Route("/task/{id:[0-9]+}", func(r chi.Router) {
			r.Get("/", h.TaskDetail)
			r.Get("/update/", h.UpdateTaskPage)
			r.Post("/update/", h.UpdateTask)
			r.Get("/delete/", h.DeleteTaskPage)
			r.Post("/delete/", h.DeleteTask)
			r.Post("/toggle/", h.ToggleTask)
		})
	})
}

// filesOnly hides directory listings under /media/.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, afero.ErrFileNotFound
	}
	return file, nil
}
