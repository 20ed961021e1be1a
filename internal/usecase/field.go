package usecase

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Field is a form value as it arrived in a JSON body. Clients are free to send
// numbers, booleans or nulls where strings are expected, so the value keeps
// its text form plus JSON truthiness.
type Field struct {
	Text   string
	Truthy bool
	// IsString reports whether the value was a JSON string.
	IsString bool
}

// TextField builds a Field from a plain string.
func TextField(s string) Field {
	return Field{Text: s, Truthy: s != "", IsString: true}
}

func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*f = Field{}
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case 'n':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = TextField(s)
	case 't':
		*f = Field{Text: "true", Truthy: true}
	case 'f':
		*f = Field{Text: "false"}
	case '{', '[':
		// Objects and arrays are always truthy; their text is what
		// String(value) gives in a browser.
		text, err := jsString(b)
		if err != nil {
			return err
		}
		*f = Field{Text: text, Truthy: true}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		v, err := n.Float64()
		if err != nil {
			return err
		}
		*f = Field{Text: n.String(), Truthy: v != 0}
	}
	return nil
}

// jsString renders a JSON value the way JavaScript string conversion does:
// objects become "[object Object]", arrays join their elements with commas
// and null elements render empty.
func jsString(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return "", nil
	}
	switch b[0] {
	case '{':
		return "[object Object]", nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(b, &elems); err != nil {
			return "", err
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			text, err := jsString(e)
			if err != nil {
				return "", err
			}
			parts[i] = text
		}
		return strings.Join(parts, ","), nil
	case 'n':
		return "", nil
	}
	var f Field
	if err := f.UnmarshalJSON(b); err != nil {
		return "", err
	}
	return f.Text, nil
}
