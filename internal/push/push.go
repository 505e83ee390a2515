// Package push stores web-push subscriptions and delivers best-effort
// background notifications to users who are not the message sender.
package push

import (
	"encoding/json"
	"log/slog"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Notification is the payload shown by the service worker.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Registry maps usernames to their push subscriptions. Writes come from
// the HTTP subscribe handler; the hub only reads it to pick targets.
type Registry struct {
	mu   sync.RWMutex
	log  *slog.Logger
	subs map[string]*webpush.Subscription

	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
}

func NewRegistry(log *slog.Logger, vapidPublicKey, vapidPrivateKey, subscriber string) *Registry {
	return &Registry{
		log:             log,
		subs:            map[string]*webpush.Subscription{},
		subscriber:      subscriber,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
	}
}

// Subscribe stores or replaces the subscription for username.
func (r *Registry) Subscribe(username string, sub *webpush.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[username] = sub
	r.log.Info("push subscription stored", "user", username)
}

// NotifyOffline sends the notification to every subscribed user except
// the sender. Each delivery is attempted once; failures are logged and
// never abort the fan-out. Without VAPID keys it does nothing.
func (r *Registry) NotifyOffline(sender string, n Notification) {
	if r.vapidPublicKey == "" || r.vapidPrivateKey == "" {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		r.log.Error("encoding notification failed", "error", err)
		return
	}

	for user, sub := range r.targets(sender) {
		resp, err := webpush.SendNotification(payload, sub, &webpush.Options{
			Subscriber:      r.subscriber,
			VAPIDPublicKey:  r.vapidPublicKey,
			VAPIDPrivateKey: r.vapidPrivateKey,
			TTL:             60,
		})
		if err != nil {
			r.log.Error("push delivery failed", "user", user, "error", err)
			continue
		}
		_ = resp.Body.Close()
	}
}

func (r *Registry) targets(sender string) map[string]*webpush.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*webpush.Subscription, len(r.subs))
	for user, sub := range r.subs {
		if user != sender {
			out[user] = sub
		}
	}
	return out
}
