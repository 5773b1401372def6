package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"
	"todoTracker/internal/models/task"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const layout = "templates/base.html"

var templateFuncs = template.FuncMap{
	"date": func(d *time.Time) string {
		if d == nil {
			return ""
		}
		return d.UTC().Format("Jan 2, 2006")
	},
	"datetime": func(ts any) string {
		switch v := ts.(type) {
		case time.Time:
			return v.Format("Jan 2, 2006 15:04")
		case *time.Time:
			if v != nil {
				return v.Format("Jan 2, 2006 15:04")
			}
		}
		return ""
	},
	"pageURL":    pageURL,
	"priorities": func() []task.Priority { return task.Priorities },
	"statuses":   func() []task.Status { return task.Statuses },
	"mediaURL":   func(name string) string { return "/media/" + name },
	"prev":       func(n int) int { return n - 1 },
	"next":       func(n int) int { return n + 1 },
}

// pageURL links to page n of the task list, keeping the current filters.
func pageURL(f task.ListFilter, n int) string {
	q := url.Values{}
	if f.Status != task.FilterAll {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Sort.Field != "" && f.Sort != task.DefaultSort {
		q.Set("sort", f.Sort.String())
	}
	q.Set("page", strconv.Itoa(n))
	return "/tasks/?" + q.Encode()
}

// Renderer holds one template set per page, each combined with the layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layout {
			continue
		}
		tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFS(templateFS, layout, name)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		pages[name[len("templates/"):]] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// render executes page into a buffer first so a template failure still
// produces a clean 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	tmpl, ok := h.renderer.pages[page]
	if !ok {
		logger.Error("HTTP: Unknown template", nil, zap.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	if u, ok := middleware.CurrentUser(r.Context()); ok {
		data["User"] = u
	}
	data["Flashes"] = popFlashes(w, r)
	data["Path"] = r.URL.Path
	data["CSRFToken"] = middleware.CSRFToken(w, r)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		logger.Error("HTTP: Template failed", err,
			zap.String("page", page),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
