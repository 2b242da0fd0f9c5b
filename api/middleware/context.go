package middleware

import (
	"context"

	"github.com/angelmondragon/productdesk/internal/session"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxBrowserID contextKey = "browser_id"
	ctxTab       contextKey = "tab"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func BrowserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxBrowserID).(string); ok {
		return v
	}
	return ""
}

// TabFromContext returns the browser session's live tab, or nil outside BrowserSession.
func TabFromContext(ctx context.Context) *session.Tab {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxTab).(*session.Tab); ok {
		return v
	}
	return nil
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithTab injects the browser session and its tab into the context.
func WithTab(ctx context.Context, tab *session.Tab) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxBrowserID, tab.BrowserID)
	return context.WithValue(ctx, ctxTab, tab)
}
