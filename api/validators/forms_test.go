package validators

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
)

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestParseLoginForm(t *testing.T) {
	form, err := ParseLoginForm(postForm(url.Values{"email": {"  ayse@example.com "}, "password": {"x"}}))
	require.NoError(t, err)
	require.Equal(t, "ayse@example.com", form.Email)

	_, err = ParseLoginForm(postForm(url.Values{"email": {"not an email"}}))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, map[string]string{
		"email":    "Geçerli bir e-posta adresi girin",
		"password": "Şifre gereklidir",
	}, FieldErrors(err))
}

func TestParseSignupForm(t *testing.T) {
	cases := []struct {
		name   string
		values url.Values
		errs   map[string]string
	}{
		{
			name:   "valid",
			values: url.Values{"email": {"yeni@example.com"}, "password": {"secret1"}, "confirm_password": {"secret1"}},
		},
		{
			name:   "empty",
			values: url.Values{},
			errs: map[string]string{
				"email":            "E-posta adresi gereklidir",
				"password":         "Şifre gereklidir",
				"confirm_password": "Şifre tekrarı gereklidir",
			},
		},
		{
			name:   "short and mismatched",
			values: url.Values{"email": {"a@b"}, "password": {"12345"}, "confirm_password": {"123456"}},
			errs: map[string]string{
				"password":         "Şifre en az 6 karakter olmalıdır",
				"confirm_password": "Şifreler eşleşmiyor",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form, err := ParseSignupForm(postForm(tc.values))
			if tc.errs == nil {
				require.NoError(t, err)
				require.Equal(t, map[string]string{"email": "yeni@example.com"}, form.Values())
				return
			}
			require.Equal(t, tc.errs, FieldErrors(err))
		})
	}
}

func multipartRequest(t *testing.T, fields map[string]string, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/add-product", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseProductFormWithImage(t *testing.T) {
	req := multipartRequest(t, map[string]string{"name": "Kupa", "description": "Seramik kupa 350 ml", "price": "10"}, "kupa.png", "image/png", []byte("png"))

	form, img, err := ParseProductForm(req, 5<<20)
	require.NoError(t, err)

	require.Equal(t, "Kupa", form.Name)
	require.Equal(t, "10", form.Price)
	require.NotNil(t, img)
	require.Equal(t, "kupa.png", img.Filename)
	require.Equal(t, "image/png", img.ContentType)
	require.EqualValues(t, 3, img.Size)
}

func TestParseProductFormWithoutImage(t *testing.T) {
	req := multipartRequest(t, map[string]string{"name": "Kupa"}, "", "", nil)
	form, img, err := ParseProductForm(req, 5<<20)
	require.NoError(t, err)
	require.Nil(t, img)
	require.Equal(t, "Kupa", form.Name)
}

func TestParseProductFormTooLarge(t *testing.T) {
	req := multipartRequest(t, map[string]string{"name": "Kupa"}, "big.png", "image/png", bytes.Repeat([]byte("x"), 3<<20))
	form, img, err := ParseProductForm(req, 1<<20)
	require.Equal(t, map[string]string{"image": "Resim en fazla 1 MB olabilir"}, FieldErrors(err))
	require.Nil(t, img)
	require.Equal(t, "Kupa", form.Name, "fields before the file survive")
}

func TestParseProductFormOversizedImageKeepsLaterFields(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="big.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 1<<20+10))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("name", "Kupa"))
	require.NoError(t, mw.WriteField("price", "12,50"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/add-product", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	form, img, err := ParseProductForm(req, 1<<20)
	require.Equal(t, map[string]string{"image": "Resim en fazla 1 MB olabilir"}, FieldErrors(err))
	require.Nil(t, img)
	require.Equal(t, "Kupa", form.Name)
	require.Equal(t, "12,50", form.Price)
}

func TestParseProductFormBuffersImage(t *testing.T) {
	req := multipartRequest(t, map[string]string{"name": "Kupa"}, "kupa.png", "image/png", []byte("png"))
	_, img, err := ParseProductForm(req, 5<<20)
	require.NoError(t, err)
	raw, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	require.Equal(t, "png", string(raw))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "abc", SanitizeString(" abc ", 0))
	require.Equal(t, "ay", SanitizeString("ayşe@example.com", 3), "never splits a multi-byte rune")
	require.Equal(t, "ayş", SanitizeString("ayşe@example.com", 4))
}

func TestLooseEmailValidation(t *testing.T) {
	v := newValidator()
	require.NoError(t, v.Var("ayse@example", "loose_email"))
	require.Error(t, v.Var("ayse example.com", "loose_email"))
}
