package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/productdesk/api/responses"
	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
	"github.com/angelmondragon/productdesk/pkg/logger"
)

func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					err := fmt.Errorf("panic: %v", rec)
					ctx := r.Context()
					if logg != nil {
						ctx = logg.WithFields(ctx, map[string]any{"panic": fmt.Sprint(rec)})
						logg.Error(ctx, "panic.recovered", err)
					}
					typed := pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic")
					if wantsJSON(r) {
						responses.WriteError(ctx, nil, w, typed)
						return
					}
					responses.WritePlainError(ctx, nil, w, typed)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wantsJSON reports whether the caller is an API client rather than a browser page.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
