package forms

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"todoTracker/internal/auth"
	"todoTracker/internal/media"
	"todoTracker/internal/models/user"
	"todoTracker/internal/service"
)

type LoginForm struct {
	Username string `form:"username" trim:"true" validate:"required"`
	Password string `form:"password" validate:"required"`

	Errors Errors `form:"-" validate:"-"`
}

func NewLoginForm() *LoginForm {
	return &LoginForm{Errors: Errors{}}
}

func ParseLoginForm(values url.Values) *LoginForm {
	f := &LoginForm{Errors: Errors{}}
	bind(f, values, f.Errors)
	return f
}

func (f *LoginForm) Valid() bool {
	return !f.Errors.Any()
}

type RegisterForm struct {
	Username  string `form:"username" trim:"true" validate:"required,max=150,username"`
	Email     string `form:"email" trim:"true" validate:"required,email"`
	FirstName string `form:"first_name" trim:"true" validate:"required,max=30"`
	LastName  string `form:"last_name" trim:"true" validate:"required,max=30"`
	Password1 string `form:"password1" validate:"required"`
	Password2 string `form:"password2" validate:"required"`

	Errors Errors `form:"-" validate:"-"`
}

func NewRegisterForm() *RegisterForm {
	return &RegisterForm{Errors: Errors{}}
}

// ParseRegisterForm validates the fields and then the password: the two
// entries must match and pass the password strength rules. Password problems
// are reported against password2.
func ParseRegisterForm(values url.Values) *RegisterForm {
	f := &RegisterForm{Errors: Errors{}}
	bind(f, values, f.Errors)

	if f.Password1 == "" || f.Password2 == "" {
		return f
	}
	if f.Password1 != f.Password2 {
		f.Errors.Add("password2", "The two password fields didn't match.")
		return f
	}
	for _, msg := range auth.ValidatePassword(f.Password2, f.Username, f.FirstName, f.LastName, f.Email) {
		f.Errors.Add("password2", msg)
	}
	return f
}

func (f *RegisterForm) Valid() bool {
	return !f.Errors.Any()
}

func (f *RegisterForm) Registration() service.Registration {
	return service.Registration{
		Username:  f.Username,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Password:  f.Password1,
	}
}

type UserUpdateForm struct {
	Username  string `form:"username" trim:"true" validate:"required,max=150,username"`
	Email     string `form:"email" trim:"true" validate:"required,email"`
	FirstName string `form:"first_name" trim:"true" validate:"max=30"`
	LastName  string `form:"last_name" trim:"true" validate:"max=30"`

	Errors Errors `form:"-" validate:"-"`
}

func UserUpdateFormFrom(u *user.User) *UserUpdateForm {
	return &UserUpdateForm{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Errors:    Errors{},
	}
}

func ParseUserUpdateForm(values url.Values) *UserUpdateForm {
	f := &UserUpdateForm{Errors: Errors{}}
	bind(f, values, f.Errors)
	return f
}

func (f *UserUpdateForm) Valid() bool {
	return !f.Errors.Any()
}

func (f *UserUpdateForm) Changes() service.UserChanges {
	return service.UserChanges{
		Username:  f.Username,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
	}
}

type ProfileForm struct {
	Bio         string `form:"bio" trim:"true" validate:"max=500"`
	PhoneNumber string `form:"phone_number" trim:"true" validate:"max=20"`
	BirthDate   string `form:"birth_date" trim:"true" validate:"omitempty,datetime=2006-01-02"`

	// Avatar is the uploaded replacement, nil when none was sent.
	Avatar *media.Upload `form:"-" validate:"-"`
	// CurrentAvatar is the stored path shown next to the file input.
	CurrentAvatar string `form:"-" validate:"-"`

	Errors Errors `form:"-" validate:"-"`
}

func ProfileFormFrom(p *user.Profile) *ProfileForm {
	return &ProfileForm{
		Bio:           p.Bio,
		PhoneNumber:   p.PhoneNumber,
		BirthDate:     formatDate(p.BirthDate),
		CurrentAvatar: p.Avatar,
		Errors:        Errors{},
	}
}

// ParseProfileForm binds the text fields from r's parsed form and reads the
// optional "avatar" file, which must be an image of at most maxBytes.
func ParseProfileForm(r *http.Request, maxBytes int64) *ProfileForm {
	f := &ProfileForm{Errors: Errors{}}
	bind(f, r.PostForm, f.Errors)

	upload, err := readAvatar(r, maxBytes)
	if err != nil {
		f.Errors.Add("avatar", avatarMessage(err, maxBytes))
		return f
	}
	f.Avatar = upload
	return f
}

func (f *ProfileForm) Valid() bool {
	return !f.Errors.Any()
}

func (f *ProfileForm) Changes() service.ProfileChanges {
	return service.ProfileChanges{
		Bio:         f.Bio,
		PhoneNumber: f.PhoneNumber,
		BirthDate:   parseDate(f.BirthDate),
		Avatar:      f.Avatar,
	}
}

func readAvatar(r *http.Request, maxBytes int64) (*media.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	if header.Size == 0 && header.Filename == "" {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, media.ErrTooLarge
	}
	if _, err := media.DetectImage(data); err != nil {
		return nil, err
	}

	return &media.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func avatarMessage(err error, maxBytes int64) string {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return fmt.Sprintf("The file is too large. Avatars may be at most %d KB.", maxBytes/1024)
	case errors.Is(err, media.ErrEmpty):
		return "The submitted file is empty."
	case errors.Is(err, media.ErrNotImage):
		return "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	}
	return "The file could not be read."
}
