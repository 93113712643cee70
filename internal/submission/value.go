package submission

import (
	"bytes"
	"encoding/json"
	"strings"
)

type valueKind uint8

const (
	kindAbsent valueKind = iota
	kindString
	kindList
	kindNull
	kindInvalid
)

// Value is an answer as posted by the browser: a string or a list of strings.
// Decoding never fails; anything else is recorded as invalid and rejected
// later with the question id attached. The zero Value is a missing field and
// renders as the empty string.
type Value struct {
	kind  valueKind
	text  string
	items []string
}

// Text returns a string answer.
func Text(s string) Value {
	return Value{kind: kindString, text: s}
}

// List returns a list answer. The slice is copied.
func List(items ...string) Value {
	return Value{kind: kindList, items: append([]string{}, items...)}
}

func (v Value) IsList() bool {
	return v.kind == kindList
}

func (v Value) IsString() bool {
	return v.kind == kindString
}

// IsMissing reports whether the field was absent or null.
func (v Value) IsMissing() bool {
	return v.kind == kindAbsent || v.kind == kindNull
}

// String returns the text of a string answer, or "" for any other kind.
func (v Value) String() string {
	if v.kind != kindString {
		return ""
	}
	return v.text
}

// Items returns a copy of a list answer.
func (v Value) Items() []string {
	if v.kind != kindList {
		return nil
	}
	return append([]string{}, v.items...)
}

// Display renders the answer on one line, list items joined by ", ".
func (v Value) Display() string {
	if v.kind == kindList {
		return strings.Join(v.items, ", ")
	}
	return v.String()
}

// appendPath implements the upgrade rule for uploaded images: an empty answer
// becomes the path, a single path becomes a two element list, and a list grows.
func (v Value) appendPath(path string) Value {
	switch {
	case v.kind == kindList:
		return Value{kind: kindList, items: append(append([]string{}, v.items...), path)}
	case v.kind == kindString && v.text != "":
		return List(v.text, path)
	default:
		return Text(path)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == kindList {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	return json.Marshal(v.String())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*v = Value{kind: kindNull}
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			*v = Value{kind: kindInvalid}
			return nil
		}
		*v = Text(s)
	case len(trimmed) > 0 && trimmed[0] == '[':
		var items []string
		if err := json.Unmarshal(trimmed, &items); err != nil {
			*v = Value{kind: kindInvalid}
			return nil
		}
		if items == nil {
			items = []string{}
		}
		*v = Value{kind: kindList, items: items}
	default:
		*v = Value{kind: kindInvalid}
	}
	return nil
}
