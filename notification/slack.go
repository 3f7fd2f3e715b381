package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/datametry/edr/alert"
	"github.com/datametry/edr/metrics"
	edrhttp "github.com/datametry/edr/pkg/http"
)

const maxErrorBody = 512

// Slack posts alerts to Slack incoming webhooks or Slack workflow webhooks.
type Slack struct {
	httpClient *http.Client
}

func NewSlack(timeout time.Duration) *Slack {
	return &Slack{
		httpClient: edrhttp.NewClient(edrhttp.ClientOpts{
			Timeout: timeout,
			Wrap:    metrics.NewRoundTripper,
		}),
	}
}

// Send posts one alert.  Workflow webhooks receive a flat map of string variables; incoming webhooks
// receive a message with an attachment.
func (s *Slack) Send(ctx context.Context, endpoint string, a *alert.Alert, workflow bool) error {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("invalid webhook url %q: must be http or https", edrhttp.RedactURL(endpoint))
	}

	var payload any
	if workflow {
		payload = WorkflowPayload(a)
	} else {
		payload = MessagePayload(a)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", a.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("new request: %w", redactURLError(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "edr-monitor")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", redactURLError(err))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return fmt.Errorf("read resp: %w", err)
		}
		return fmt.Errorf("write failed: %s:%s", resp.Status, string(body))
	}
	return nil
}

type Message struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Timestamp int64   `json:"ts,omitempty"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// MessagePayload renders an alert for a Slack incoming webhook.
func MessagePayload(a *alert.Alert) Message {
	var fields []Field
	add := func(title, value string, short bool) {
		if value != "" {
			fields = append(fields, Field{Title: title, Value: value, Short: short})
		}
	}

	add("Severity", a.Severity, true)
	add("Detected at", a.DetectedAt.Format(time.RFC3339), true)
	switch a.Render {
	case alert.RenderSchemaChange:
		add("Change", a.SubType, true)
		add("Table", a.Table, true)
		add("Column", a.Column, true)
	case alert.RenderAnomaly:
		add("Monitor", a.SubType, true)
		add("Table", a.Table, true)
		add("Column", a.Column, true)
		add("Anomalous value", a.Payload["anomalous_value"], true)
	default:
		add("Test", a.SubType, true)
		add("Table", a.Table, true)
		add("Column", a.Column, true)
	}
	add("Owners", strings.Join(a.Owners, ", "), true)
	add("Tags", strings.Join(a.Tags, ", "), true)

	return Message{
		Text: fmt.Sprintf(":small_red_triangle: %s", a.Title()),
		Attachments: []Attachment{{
			Color:     severityColor(a.Severity),
			Title:     a.Title(),
			Text:      a.Description,
			Fields:    fields,
			Timestamp: a.DetectedAt.Unix(),
		}},
	}
}

// WorkflowPayload renders an alert as the flat string variables a Slack workflow webhook accepts.
func WorkflowPayload(a *alert.Alert) map[string]string {
	return map[string]string{
		"alert_id":          a.ID,
		"title":             a.Title(),
		"detected_at":       a.DetectedAt.Format(time.RFC3339),
		"severity":          a.Severity,
		"alert_type":        a.Type,
		"sub_type":          a.SubType,
		"table_name":        a.Table,
		"column_name":       a.Column,
		"alert_description": a.Description,
		"owners":            strings.Join(a.Owners, ", "),
		"tags":              strings.Join(a.Tags, ", "),
	}
}

// redactURLError hides the webhook secret carried in the URL of a *url.Error.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = edrhttp.RedactURL(uerr.URL)
	}
	return err
}

func severityColor(severity string) string {
	switch severity {
	case "error", "critical":
		return "#ff0000"
	case "warn", "warning":
		return "#ffcc00"
	default:
		return "#439fe0"
	}
}
