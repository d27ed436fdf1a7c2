package notify

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrDuplicate is returned when the same notification was sent within the dedup window
	ErrDuplicate = errors.New("duplicate notification")
	// ErrInvalid is returned when a notification has no title or body
	ErrInvalid = errors.New("invalid notification")
	// ErrNotFound is returned by stores for an unknown notification id
	ErrNotFound = errors.New("notification not found")
)

// Notification kinds
const (
	KindDispatch = "dispatch"
	KindWeather  = "weather"
	KindSystem   = "system"
)

// Delivery channels
const (
	ChannelStore     = "store"
	ChannelDiscord   = "discord"
	ChannelHoppie    = "hoppie"
	ChannelWebsocket = "websocket"
)

// Notification is a dispatch message sent to the crew
type Notification struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Callsign  string    `json:"callsign,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// Normalize trims fields and fills in the default kind
func (n *Notification) Normalize() {
	n.Kind = strings.ToLower(strings.TrimSpace(n.Kind))
	if n.Kind == "" {
		n.Kind = KindDispatch
	}
	n.Callsign = strings.ToUpper(strings.TrimSpace(n.Callsign))
	n.Title = strings.TrimSpace(n.Title)
	n.Body = strings.TrimSpace(n.Body)
}

// Validate reports ErrInvalid for an empty message
func (n *Notification) Validate() error {
	if n.Title == "" && n.Body == "" {
		return ErrInvalid
	}
	return nil
}

// Delivery is the per-channel result of a send. Channels that were not
// attempted are absent.
type Delivery struct {
	Notification *Notification    `json:"notification"`
	Channels     map[string]string `json:"channels"`
}

// Store persists notifications
type Store interface {
	SaveNotification(ctx context.Context, n *Notification) (int64, error)
	ListNotifications(ctx context.Context, limit int, unreadOnly bool) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Sender delivers a notification over one external channel
type Sender interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Broadcaster pushes notifications to connected clients
type Broadcaster interface {
	BroadcastNotification(payload any)
}
