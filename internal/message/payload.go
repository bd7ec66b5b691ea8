package message

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Payload is the set of TrendMiner monitor fields the relay knows how to render.
// Every field is optional; an empty string means the value was absent or falsy.
type Payload struct {
	MonitorID         string
	SearchID          string
	ResultID          string
	ResultScore       string
	SearchName        string
	SearchType        string
	SearchCreator     string
	SearchDescription string
	WebhookCallEvent  string
	ResultStart       string
	ResultEnd         string
	WebhookCallTime   string
	ResultURL         string
}

// IsEmpty reports whether no field carried a value.
func (p Payload) IsEmpty() bool {
	return p == Payload{}
}

// DecodePayload turns the raw tm_data value into a Payload.
//
// tm_data usually arrives as a JSON-encoded string and sometimes as an object.
// Decoding never fails: anything that does not resolve to a JSON object yields
// an empty Payload, which renders with placeholders.
func DecodePayload(raw json.RawMessage) Payload {
	value, ok := decodeValue(raw)
	if !ok {
		return Payload{}
	}

	if text, isString := value.(string); isString {
		nested, ok := decodeValue(json.RawMessage(text))
		if !ok {
			return Payload{}
		}
		value = nested
	}

	fields, ok := value.(map[string]any)
	if !ok {
		return Payload{}
	}
	return fromFields(fields)
}

func fromFields(fields map[string]any) Payload {
	return Payload{
		MonitorID:         stringify(fields["monitorId"]),
		SearchID:          stringify(fields["searchId"]),
		ResultID:          stringify(fields["resultId"]),
		ResultScore:       stringify(fields["resultScore"]),
		SearchName:        stringify(fields["searchName"]),
		SearchType:        stringify(fields["searchType"]),
		SearchCreator:     stringify(fields["searchCreator"]),
		SearchDescription: stringify(fields["searchDescription"]),
		WebhookCallEvent:  stringify(fields["webhookCallEvent"]),
		ResultStart:       stringify(fields["resultStart"]),
		ResultEnd:         stringify(fields["resultEnd"]),
		WebhookCallTime:   stringify(fields["webhookCallTime"]),
		ResultURL:         stringify(fields["resultUrl"]),
	}
}

func decodeValue(raw []byte) (any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}
	return value, value != nil
}

// stringify renders a decoded JSON value for the message body.
// Falsy values (null, "", 0, false) come back empty so they get a placeholder.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		if f == 0 {
			return ""
		}
		return formatNumber(f)
	case bool:
		if v {
			return "true"
		}
		return ""
	default:
		var b bytes.Buffer
		enc := json.NewEncoder(&b)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return ""
		}
		return strings.TrimSpace(b.String())
	}
}

// formatNumber renders f in shortest decimal form: 9.50 becomes 9.5 and 1e2
// becomes 100. Magnitudes of 1e21 and above, or below 1e-6, use exponent form.
func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs < 1e21 && abs >= 1e-6 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}
