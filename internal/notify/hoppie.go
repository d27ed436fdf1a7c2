package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHoppieURL is the public Hoppie ACARS connect endpoint
const DefaultHoppieURL = "https://www.hoppie.nl/acars/system/connect.html"

// ErrSkipped is returned by a sender that does not apply to a notification
var ErrSkipped = errors.New("skipped")

// HoppieSender delivers notifications as ACARS telex messages through Hoppie
type HoppieSender struct {
	url        string
	logon      string
	station    string
	httpClient *http.Client
}

// NewHoppieSender creates a telex sender. station is the sending callsign.
func NewHoppieSender(endpoint, logon, station string, timeout time.Duration) *HoppieSender {
	if endpoint == "" {
		endpoint = DefaultHoppieURL
	}
	return &HoppieSender{
		url:        endpoint,
		logon:      logon,
		station:    strings.ToUpper(station),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements Sender
func (h *HoppieSender) Name() string { return ChannelHoppie }

// Send implements Sender. Notifications without a callsign are skipped.
func (h *HoppieSender) Send(ctx context.Context, n *Notification) error {
	if n.Callsign == "" || h.logon == "" {
		return ErrSkipped
	}

	form := url.Values{}
	form.Set("logon", h.logon)
	form.Set("from", h.station)
	form.Set("to", n.Callsign)
	form.Set("type", "telex")
	form.Set("packet", telexPacket(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build hoppie request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hoppie request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("read hoppie response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hoppie returned %d", resp.StatusCode)
	}

	// Hoppie answers 200 with "ok" or "error {reason}"
	reply := strings.TrimSpace(string(body))
	if !strings.HasPrefix(reply, "ok") {
		return fmt.Errorf("hoppie rejected message: %s", reply)
	}
	return nil
}

// telexPacket renders a notification as upper-case telex text
func telexPacket(n *Notification) string {
	text := n.Body
	if n.Title != "" && n.Body != "" {
		text = n.Title + ": " + n.Body
	} else if n.Title != "" {
		text = n.Title
	}
	return strings.ToUpper(text)
}
