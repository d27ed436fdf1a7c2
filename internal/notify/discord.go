package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed colours per kind
var discordColors = map[string]int{
	KindDispatch: 0x3498DB,
	KindWeather:  0xF1C40F,
	KindSystem:   0x95A5A6,
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender posts notifications to a Discord webhook as embeds
type DiscordSender struct {
	webhookURL string
	username   string
	httpClient *http.Client
}

// NewDiscordSender creates a webhook sender
func NewDiscordSender(webhookURL, username string, timeout time.Duration) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		username:   username,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements Sender
func (d *DiscordSender) Name() string { return ChannelDiscord }

// Send implements Sender
func (d *DiscordSender) Send(ctx context.Context, n *Notification) error {
	embed := discordEmbed{
		Title:       n.Title,
		Description: n.Body,
		Color:       discordColors[n.Kind],
		Timestamp:   n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.Callsign != "" {
		embed.Footer = &discordFooter{Text: n.Callsign}
	}

	body, err := json.Marshal(discordPayload{Username: d.username, Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
