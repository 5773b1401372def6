package handlers

import (
	"fmt"
	"net/http"

	"todoTracker/internal/forms"
	"todoTracker/internal/logger"
	"todoTracker/internal/middleware"
	"todoTracker/internal/models/user"
	"todoTracker/internal/service"

	"go.uber.org/zap"
)

// multipartOverhead is what a profile form may add on top of the avatar.
const multipartOverhead = 1 << 20

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if u, ok := middleware.CurrentUser(r.Context()); ok {
		stats, err := h.tasks.Stats(r.Context(), u.ID)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		data["Stats"] = stats
	}
	h.render(w, r, http.StatusOK, "home.html", data)
}

func (h *Handler) About(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "about.html", nil)
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.CurrentUser(r.Context()); ok {
		redirect(w, r, "/tasks/")
		return
	}
	h.render(w, r, http.StatusOK, "register.html", map[string]any{"Form": forms.NewRegisterForm()})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest)
		return
	}

	form := forms.ParseRegisterForm(r.PostForm)
	if !form.Valid() {
		h.render(w, r, http.StatusOK, "register.html", map[string]any{"Form": form})
		return
	}

	u, err := h.accounts.Register(r.Context(), form.Registration())
	if err != nil {
		if form.Errors.Merge(err) {
			h.render(w, r, http.StatusOK, "register.html", map[string]any{"Form": form})
			return
		}
		h.handleError(w, r, err)
		return
	}

	addFlash(w, r, FlashSuccess, fmt.Sprintf("Account created successfully for %s! You can now log in.", u.Username))
	redirect(w, r, middleware.LoginURL)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, form *forms.LoginForm, next string) {
	h.render(w, r, http.StatusOK, "login.html", map[string]any{"Form": form, "Next": next})
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next, _ := safeNext(r.URL.Query().Get("next"))
	h.renderLogin(w, r, forms.NewLoginForm(), next)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorPage(w, r, http.StatusBadRequest)
		return
	}

	next, ok := safeNext(r.PostForm.Get("next"))
	if !ok {
		next, _ = safeNext(r.URL.Query().Get("next"))
	}

	form := forms.ParseLoginForm(r.PostForm)
	if !form.Valid() {
		h.renderLogin(w, r, form, next)
		return
	}

	u, err := h.accounts.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if busErr, ok := service.AsBusinessError(err); ok && busErr.Code == service.CodeInvalidCredentials {
			form.Errors.Add(forms.NonFieldErrors, busErr.Message)
			h.renderLogin(w, r, form, next)
			return
		}
		h.handleError(w, r, err)
		return
	}

	if err := h.sessions.Login(w, u.ID); err != nil {
		h.handleError(w, r, err)
		return
	}
	middleware.RotateCSRFToken(w, r)

	logger.Info("HTTP: User logged in",
		zap.Int64("user_id", u.ID),
		zap.String("request_id", middleware.GetRequestID(r.Context())))

	if next == "" {
		next = "/tasks/"
	}
	redirect(w, r, next)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Revoke(w, r)
	redirect(w, r, "/")
}

func (h *Handler) renderProfile(w http.ResponseWriter, r *http.Request, status int, u *user.User, uf *forms.UserUpdateForm, pf *forms.ProfileForm) {
	stats, err := h.tasks.Stats(r.Context(), u.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.render(w, r, status, "profile.html", map[string]any{
		"UserForm":    uf,
		"ProfileForm": pf,
		"Stats":       stats,
	})
}

func (h *Handler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())

	p, err := h.accounts.Profile(r.Context(), u.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.renderProfile(w, r, http.StatusOK, u, forms.UserUpdateFormFrom(u), forms.ProfileFormFrom(p))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.CurrentUser(r.Context())

	current, err := h.accounts.Profile(r.Context(), u.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarBytes+multipartOverhead)
	if checkContentType(r, "multipart/form-data") {
		err = r.ParseMultipartForm(h.maxAvatarBytes + multipartOverhead)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		logger.Warn("HTTP: Could not parse profile form",
			zap.Error(err),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
		h.errorPage(w, r, http.StatusBadRequest)
		return
	}

	uf := forms.ParseUserUpdateForm(r.PostForm)
	pf := forms.ParseProfileForm(r, h.maxAvatarBytes)
	pf.CurrentAvatar = current.Avatar
	if !uf.Valid() || !pf.Valid() {
		h.renderProfile(w, r, http.StatusOK, u, uf, pf)
		return
	}

	if _, _, err := h.accounts.UpdateProfile(r.Context(), u.ID, uf.Changes(), pf.Changes()); err != nil {
		if field, _, ok := service.FieldError(err); ok {
			target := uf.Errors
			if field == "avatar" || field == "bio" || field == "phone_number" || field == "birth_date" {
				target = pf.Errors
			}
			target.Merge(err)
			h.renderProfile(w, r, http.StatusOK, u, uf, pf)
			return
		}
		h.handleError(w, r, err)
		return
	}

	addFlash(w, r, FlashSuccess, "Your profile has been updated successfully!")
	redirect(w, r, "/profile/")
}
