package validators

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	product "github.com/angelmondragon/productdesk/internal/products"
	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
)

const maxEmailLength = 254

// LoginForm is the sign-in form.
type LoginForm struct {
	Email    string `form:"email" validate:"required,loose_email"`
	Password string `form:"password" validate:"required"`
}

// SignupForm is the registration form.
type SignupForm struct {
	Email           string `form:"email" validate:"required,loose_email"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

var authMessages = Messages{
	"email": {
		"required":    "E-posta adresi gereklidir",
		"loose_email": "Geçerli bir e-posta adresi girin",
	},
	"password": {
		"required": "Şifre gereklidir",
		"min":      "Şifre en az 6 karakter olmalıdır",
	},
	"confirm_password": {
		"required": "Şifre tekrarı gereklidir",
		"eqfield":  "Şifreler eşleşmiyor",
	},
}

// Values returns the fields safe to echo back into the form.
func (f LoginForm) Values() map[string]string {
	return map[string]string{"email": f.Email}
}

// Values returns the fields safe to echo back into the form.
func (f SignupForm) Values() map[string]string {
	return map[string]string{"email": f.Email}
}

// ParseLoginForm reads and validates the sign-in form. The form is returned even when
// validation fails so it can be re-rendered.
func ParseLoginForm(r *http.Request) (LoginForm, error) {
	if err := r.ParseForm(); err != nil {
		return LoginForm{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form")
	}
	form := LoginForm{
		Email:    SanitizeString(r.PostForm.Get("email"), maxEmailLength),
		Password: r.PostForm.Get("password"),
	}
	return form, Struct(form, authMessages)
}

// ParseSignupForm reads and validates the registration form.
func ParseSignupForm(r *http.Request) (SignupForm, error) {
	if err := r.ParseForm(); err != nil {
		return SignupForm{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form")
	}
	form := SignupForm{
		Email:           SanitizeString(r.PostForm.Get("email"), maxEmailLength),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirm_password"),
	}
	return form, Struct(form, authMessages)
}

const maxProductFieldBytes = 64 << 10

// ParseProductForm reads the multipart add-product form part by part. image is nil when no
// file was chosen. An oversized image is dropped and reported while the text fields read so
// far are still returned for the re-render.
func ParseProductForm(r *http.Request, maxUploadBytes int64) (form product.Form, image *product.Image, err error) {
	limit := maxUploadBytes + 1<<20
	if maxUploadBytes <= 0 {
		limit = 32 << 20
		maxUploadBytes = limit
	}
	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	reader, err := r.MultipartReader()
	if err != nil {
		return form, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form")
	}

	tooLarge := false
parts:
	for {
		part, err := reader.NextPart()
		switch {
		case errors.Is(err, io.EOF):
			break parts
		case err != nil && bodyTooLarge(err):
			tooLarge = true
			break parts
		case err != nil:
			return form, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form")
		}

		var over bool
		switch name := part.FormName(); name {
		case "name", "description", "price":
			var raw []byte
			raw, err = io.ReadAll(io.LimitReader(part, maxProductFieldBytes))
			setProductField(&form, name, string(raw))
		case "image":
			var img *product.Image
			img, over, err = readImage(part, maxUploadBytes)
			if img != nil {
				image = img
			}
		}
		_ = part.Close()

		switch {
		case err != nil && bodyTooLarge(err):
			tooLarge = true
			break parts
		case err != nil:
			return form, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form")
		case over:
			tooLarge = true
		}
	}

	if tooLarge {
		return form, nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
			"image": fmt.Sprintf(product.MsgImageTooLarge, maxUploadBytes>>20),
		})
	}
	return form, image, nil
}

func setProductField(form *product.Form, name, value string) {
	switch name {
	case "name":
		form.Name = value
	case "description":
		form.Description = value
	case "price":
		form.Price = value
	}
}

// readImage buffers at most limit bytes of the file part. over reports a larger file, whose
// remainder is discarded so later fields can still be read.
func readImage(part *multipart.Part, limit int64) (img *product.Image, over bool, err error) {
	if part.FileName() == "" {
		_, err := io.Copy(io.Discard, part)
		return nil, false, err
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, limit+1))
	if err != nil {
		return nil, false, err
	}
	if n > limit {
		_, err := io.Copy(io.Discard, part)
		return nil, true, err
	}
	if n == 0 {
		return nil, false, nil
	}
	return &product.Image{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        n,
		Body:        bytes.NewReader(buf.Bytes()),
	}, false, nil
}

func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
