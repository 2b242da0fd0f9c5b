// Package notify carries one-shot toast messages from a handler to the next rendered page.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/productdesk/pkg/logger"
)

// Kind is the toast flavour.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Messages shown to the user.
const (
	MsgSignUpSuccess  = "Hesap başarıyla oluşturuldu! E-postanızı kontrol edin."
	MsgGenericFailure = "Bir hata oluştu"
	MsgSignInSuccess  = "Başarıyla giriş yapıldı"
	MsgSignOutSuccess = "Başarıyla çıkış yapıldı"
	MsgSignOutFailure = "Çıkış yapılırken bir hata oluştu"
)

// Flash is one toast.
type Flash struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

type listStore interface {
	PushWithTTL(ctx context.Context, key string, ttl time.Duration, values ...any) error
	Drain(ctx context.Context, key string) ([]string, error)
	FlashKey(browserID string) string
}

// Notifier queues flashes per browser session.
type Notifier struct {
	store listStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewNotifier(store listStore, ttl time.Duration, logg *logger.Logger) (*Notifier, error) {
	if store == nil {
		return nil, fmt.Errorf("flash store is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Notifier{store: store, ttl: ttl, logg: logg}, nil
}

// Success queues a success toast.
func (n *Notifier) Success(ctx context.Context, browserID, message string) {
	n.push(ctx, browserID, Flash{Kind: KindSuccess, Message: message})
}

// Error queues an error toast.
func (n *Notifier) Error(ctx context.Context, browserID, message string) {
	n.push(ctx, browserID, Flash{Kind: KindError, Message: message})
}

// push never fails the caller: a lost toast is logged and otherwise ignored.
func (n *Notifier) push(ctx context.Context, browserID string, f Flash) {
	if strings.TrimSpace(browserID) == "" || strings.TrimSpace(f.Message) == "" {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		n.logg.Error(ctx, "notify.encode_failed", err)
		return
	}
	if err := n.store.PushWithTTL(ctx, n.store.FlashKey(browserID), n.ttl, string(payload)); err != nil {
		n.logg.Error(ctx, "notify.push_failed", err)
	}
}

// Drain returns and removes the queued toasts in the order they were pushed.
func (n *Notifier) Drain(ctx context.Context, browserID string) []Flash {
	if strings.TrimSpace(browserID) == "" {
		return nil
	}
	raw, err := n.store.Drain(ctx, n.store.FlashKey(browserID))
	if err != nil {
		n.logg.Error(ctx, "notify.drain_failed", err)
		return nil
	}
	out := make([]Flash, 0, len(raw))
	for _, item := range raw {
		var f Flash
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			n.logg.Warn(n.logg.WithField(ctx, "error", err.Error()), "notify.decode_failed")
			continue
		}
		out = append(out, f)
	}
	return out
}
