package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

const defaultSeverity = "warn"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseError is returned when a raw alert row cannot be turned into an Alert.  It indicates that the
// warehouse output does not match the expected shape.
type ParseError struct {
	Row    string
	Reason string
}

func (e *ParseError) Error() string {
	row := e.Row
	if len(row) > 256 {
		row = row[:256] + "..."
	}
	return fmt.Sprintf("malformed alert row: %s: %s", e.Reason, row)
}

// ParseRow parses one JSON encoded alert row returned by the warehouse.
func ParseRow(row []byte) (*Alert, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(row)
	if err != nil {
		return nil, &ParseError{Row: string(row), Reason: err.Error()}
	}

	obj, err := v.Object()
	if err != nil {
		return nil, &ParseError{Row: string(row), Reason: "row is not a JSON object"}
	}

	a := &Alert{
		Severity: defaultSeverity,
		Payload:  make(map[string]string),
	}

	var (
		database, schema, table string
		detectedAt              string
		parseErr                *ParseError
	)
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if parseErr != nil || v.Type() == fastjson.TypeNull {
			return
		}

		switch k := strings.ToLower(string(key)); k {
		case "alert_id":
			a.ID = valueString(v)
		case "detected_at":
			detectedAt = valueString(v)
		case "severity":
			if s := valueString(v); s != "" {
				a.Severity = strings.ToLower(s)
			}
		case "alert_type":
			a.Type = valueString(v)
		case "sub_type":
			a.SubType = valueString(v)
		case "database_name":
			database = valueString(v)
		case "schema_name":
			schema = valueString(v)
		case "table_name":
			table = valueString(v)
		case "column_name":
			a.Column = valueString(v)
		case "alert_description":
			a.Description = valueString(v)
		case "owners":
			a.Owners, err = valueList(v)
			if err != nil {
				parseErr = &ParseError{Row: string(row), Reason: fmt.Sprintf("invalid owners: %s", err)}
			}
		case "tags":
			a.Tags, err = valueList(v)
			if err != nil {
				parseErr = &ParseError{Row: string(row), Reason: fmt.Sprintf("invalid tags: %s", err)}
			}
		default:
			a.Payload[string(key)] = valueString(v)
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if strings.TrimSpace(a.ID) == "" {
		return nil, &ParseError{Row: string(row), Reason: "missing alert_id"}
	}

	if detectedAt == "" {
		return nil, &ParseError{Row: string(row), Reason: "missing detected_at"}
	}
	a.DetectedAt, err = parseTime(detectedAt)
	if err != nil {
		return nil, &ParseError{Row: string(row), Reason: fmt.Sprintf("invalid detected_at %q", detectedAt)}
	}

	a.Table = joinNonEmpty(".", database, schema, table)
	a.Render = renderHintFor(a.Type)
	return a, nil
}

// valueString returns strings unquoted and every other value as its JSON encoding.
func valueString(v *fastjson.Value) string {
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return v.String()
}

// valueList accepts a JSON array, a string holding a JSON array, or a comma separated string.
func valueList(v *fastjson.Value) ([]string, error) {
	if v.Type() == fastjson.TypeString {
		s := strings.TrimSpace(string(v.GetStringBytes()))
		if s == "" {
			return nil, nil
		}
		if !strings.HasPrefix(s, "[") {
			var out []string
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			return out, nil
		}

		var err error
		v, err = fastjson.Parse(s)
		if err != nil {
			return nil, err
		}
	}

	items, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type() == fastjson.TypeNull {
			continue
		}
		out = append(out, valueString(item))
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		t, err = time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
