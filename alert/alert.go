package alert

import (
	"fmt"
	"strings"
	"time"
)

// RenderHint tells a notification channel which message layout fits an alert.
type RenderHint string

const (
	RenderAnomaly      RenderHint = "anomaly"
	RenderSchemaChange RenderHint = "schema_change"
	RenderTest         RenderHint = "test"
)

// Alert is a single data-quality anomaly detected in the warehouse that has not yet been delivered.
type Alert struct {
	// ID uniquely identifies the alert.  It is the only key used to mark the alert as sent.
	ID string

	// DetectedAt is when the warehouse tests detected the anomaly.
	DetectedAt time.Time

	// Severity is the alert severity, e.g. warn or error.
	Severity string

	// Type is the category of the detection, e.g. anomaly_detection or schema_change.
	Type    string
	SubType string

	// Table is the fully qualified name of the monitored table, if any.
	Table  string
	Column string

	Description string
	Owners      []string
	Tags        []string

	// Payload holds every other column of the alert row, rendered as strings.
	Payload map[string]string

	Render RenderHint
}

// Title returns a one line summary of the alert.
func (a *Alert) Title() string {
	var sb strings.Builder
	sb.WriteString(strings.ReplaceAll(a.Type, "_", " "))
	if a.SubType != "" {
		fmt.Fprintf(&sb, " (%s)", a.SubType)
	}
	if a.Table != "" {
		sb.WriteString(" on ")
		sb.WriteString(a.Table)
		if a.Column != "" {
			sb.WriteString(".")
			sb.WriteString(a.Column)
		}
	}
	return sb.String()
}

func renderHintFor(alertType string) RenderHint {
	switch strings.ToLower(alertType) {
	case "anomaly_detection":
		return RenderAnomaly
	case "schema_change":
		return RenderSchemaChange
	default:
		return RenderTest
	}
}
