package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

type memStore struct {
	mu      sync.Mutex
	items   []*Notification
	saveErr error
}

func (m *memStore) SaveNotification(_ context.Context, n *Notification) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	cp := *n
	cp.ID = int64(len(m.items) + 1)
	m.items = append(m.items, &cp)
	return cp.ID, nil
}

func (m *memStore) ListNotifications(_ context.Context, limit int, unreadOnly bool) ([]*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notification
	for i := len(m.items) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if unreadOnly && m.items[i].Read {
			continue
		}
		out = append(out, m.items[i])
	}
	return out, nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return ErrNotFound
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []any
}

func (b *recordingBroadcaster) BroadcastNotification(payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, payload)
}

type failingSender struct{}

func (failingSender) Name() string { return "pager" }
func (failingSender) Send(context.Context, *Notification) error { return errors.New("pager offline") }

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store Store, clock clockwork.Clock) *Service {
	return NewService(store, NewDeduper(16, 10*time.Minute, clock), clock, observability.NewMetricsForTesting(), logger.NewNop())
}

func TestDeduper(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	d := NewDeduper(16, time.Minute, clock)
	n := &Notification{Kind: KindDispatch, Callsign: "JAL123", Title: "Gate", Body: "B12"}

	require.NoError(t, d.Check(n))
	assert.ErrorIs(t, d.Check(n), ErrDuplicate)

	other := *n
	other.Body = "B14"
	require.NoError(t, d.Check(&other))

	clock.Advance(time.Minute)
	require.NoError(t, d.Check(n), "window elapsed")
	assert.ErrorIs(t, d.Check(n), ErrDuplicate)

	d.Forget(n)
	require.NoError(t, d.Check(n))
}

func TestDeduper_SizeBound(t *testing.T) {
	d := NewDeduper(2, time.Hour, clockwork.NewFakeClockAt(epoch))
	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, d.Check(&Notification{Body: body}))
	}
	assert.Equal(t, 2, d.Len())
	// "a" was evicted
	require.NoError(t, d.Check(&Notification{Body: "a"}))
}

func TestService_Send(t *testing.T) {
	var discordBody discordPayload
	discord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&discordBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer discord.Close()

	var hoppieForm url.Values
	hoppie := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		hoppieForm = r.PostForm
		_, _ = io.WriteString(w, "ok")
	}))
	defer hoppie.Close()

	store := &memStore{}
	clock := clockwork.NewFakeClockAt(epoch)
	bc := &recordingBroadcaster{}
	svc := newTestService(store, clock)
	svc.AddSender(NewDiscordSender(discord.URL, "EFB Dispatch", time.Second))
	svc.AddSender(NewHoppieSender(hoppie.URL, "secret", "jalops", time.Second))
	svc.SetBroadcaster(bc)

	d, err := svc.Send(context.Background(), Notification{
		Callsign: " jal123 ",
		Title:    "Gate change",
		Body:     "Now arriving gate 12",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		ChannelStore:     OutcomeSuccess,
		ChannelDiscord:   OutcomeSuccess,
		ChannelHoppie:    OutcomeSuccess,
		ChannelWebsocket: OutcomeSuccess,
	}, d.Channels)
	assert.Equal(t, int64(1), d.Notification.ID)
	assert.Equal(t, KindDispatch, d.Notification.Kind)
	assert.Equal(t, "JAL123", d.Notification.Callsign)
	assert.Equal(t, epoch, d.Notification.CreatedAt)

	require.Len(t, discordBody.Embeds, 1)
	assert.Equal(t, "EFB Dispatch", discordBody.Username)
	assert.Equal(t, "Gate change", discordBody.Embeds[0].Title)
	assert.Equal(t, "Now arriving gate 12", discordBody.Embeds[0].Description)
	assert.Equal(t, "2024-06-01T12:00:00Z", discordBody.Embeds[0].Timestamp)
	require.NotNil(t, discordBody.Embeds[0].Footer)
	assert.Equal(t, "JAL123", discordBody.Embeds[0].Footer.Text)

	assert.Equal(t, "secret", hoppieForm.Get("logon"))
	assert.Equal(t, "JALOPS", hoppieForm.Get("from"))
	assert.Equal(t, "JAL123", hoppieForm.Get("to"))
	assert.Equal(t, "telex", hoppieForm.Get("type"))
	assert.Equal(t, "GATE CHANGE: NOW ARRIVING GATE 12", hoppieForm.Get("packet"))

	require.Len(t, bc.sent, 1)
	assert.Equal(t, d.Notification, bc.sent[0])

	_, err = svc.Send(context.Background(), Notification{Callsign: "JAL123", Title: "Gate change", Body: "Now arriving gate 12"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, store.items, 1)
}

func TestService_Send_ChannelFailuresKeepNotification(t *testing.T) {
	hoppie := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "error {illegal logon code}")
	}))
	defer hoppie.Close()

	store := &memStore{}
	svc := newTestService(store, clockwork.NewFakeClockAt(epoch))
	svc.AddSender(failingSender{})
	svc.AddSender(NewHoppieSender(hoppie.URL, "bad", "OPS", time.Second))

	d, err := svc.Send(context.Background(), Notification{Kind: "WEATHER", Callsign: "ANA1", Body: "TS at destination"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		ChannelStore:  OutcomeSuccess,
		"pager":       OutcomeError,
		ChannelHoppie: OutcomeError,
	}, d.Channels)
	assert.Equal(t, KindWeather, d.Notification.Kind)
	assert.Len(t, store.items, 1)
}

func TestService_Send_HoppieSkippedWithoutCallsign(t *testing.T) {
	svc := newTestService(&memStore{}, clockwork.NewFakeClockAt(epoch))
	svc.AddSender(NewHoppieSender("http://127.0.0.1:1", "secret", "OPS", time.Second))

	d, err := svc.Send(context.Background(), Notification{Title: "Ops normal"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, d.Channels[ChannelHoppie])
}

func TestService_Send_Invalid(t *testing.T) {
	svc := newTestService(&memStore{}, clockwork.NewFakeClockAt(epoch))
	_, err := svc.Send(context.Background(), Notification{Title: "  ", Body: ""})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestService_Send_StoreFailureAllowsRetry(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	svc := newTestService(store, clockwork.NewFakeClockAt(epoch))
	n := Notification{Title: "Fuel", Body: "Uplift 12.4t"}

	_, err := svc.Send(context.Background(), n)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)

	store.saveErr = nil
	_, err = svc.Send(context.Background(), n)
	require.NoError(t, err)
}

func TestService_ListAndMarkRead(t *testing.T) {
	svc := newTestService(&memStore{}, clockwork.NewFakeClockAt(epoch))
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		_, err := svc.Send(ctx, Notification{Title: title})
		require.NoError(t, err)
	}

	require.NoError(t, svc.MarkRead(ctx, 3))
	assert.ErrorIs(t, svc.MarkRead(ctx, 9), ErrNotFound)

	unread, err := svc.List(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "two", unread[0].Title)
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL, "", time.Second).Send(context.Background(), &Notification{Title: "x"})
	assert.ErrorContains(t, err, "429")
}

func TestTelexPacket(t *testing.T) {
	assert.Equal(t, "TITLE: BODY", telexPacket(&Notification{Title: "title", Body: "body"}))
	assert.Equal(t, "TITLE", telexPacket(&Notification{Title: "title"}))
	assert.Equal(t, "BODY", telexPacket(&Notification{Body: "body"}))
}
