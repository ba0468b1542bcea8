package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"matrix-quest-service/internal/domain"
)

const (
	embedColor = 2067276 // matrix green
	botName    = "Matrix MindCraft"
	footerText = "Matrix MindCraft v1.2.5"
)

// Discord posts progress embeds to a Discord webhook URL.
type Discord struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewDiscord(url string, client *http.Client) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discord{url: url, client: client, now: time.Now}
}

// Configured reports whether a webhook URL is set.
func (d *Discord) Configured() bool {
	return d.url != ""
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
	Footer    embedFooter  `json:"footer"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func (d *Discord) Notify(ctx context.Context, n domain.Notification) error {
	if !d.Configured() {
		return domain.ErrNotifierNotConfigured
	}

	now := d.now()
	body, err := json.Marshal(webhookPayload{
		Username: botName,
		Embeds: []embed{{
			Title: "Matrix MindCraft Progress",
			Color: embedColor,
			Fields: []embedField{
				{Name: "User", Value: n.Username, Inline: true},
				{Name: "Progress", Value: ProgressText(n), Inline: true},
				{Name: "Time", Value: now.Format(time.RFC1123), Inline: false},
			},
			Timestamp: now.UTC().Format(time.RFC3339),
			Footer:    embedFooter{Text: footerText},
		}},
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook failed: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

// ProgressText is the human-readable progress line shared by every channel.
func ProgressText(n domain.Notification) string {
	if n.Finished {
		return "Finished!"
	}
	return fmt.Sprintf("Question %d", n.QuestionNumber)
}
