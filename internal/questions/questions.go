// Package questions defines the question set presented by an interview form
// and the rules a set must satisfy before a session may start.
package questions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Type is the kind of answer a question collects.
type Type string

const (
	TypeSingle Type = "single"
	TypeMulti  Type = "multi"
	TypeText   Type = "text"
	TypeImage  Type = "image"
)

// DraftKeyPrefix prefixes the browser storage key of an in-progress draft.
const DraftKeyPrefix = "pi-interview"

// IsChoice reports whether answers are picked from Options.
func (t Type) IsChoice() bool {
	return t == TypeSingle || t == TypeMulti
}

// Question is a single prompt in a Set. The prompt text is stored under the
// "question" key to stay compatible with existing question files.
type Question struct {
	ID          string      `json:"id" validate:"required"`
	Type        Type        `json:"type" validate:"required,oneof=single multi text image"`
	Prompt      string      `json:"question" validate:"required"`
	Context     string      `json:"context,omitempty"`
	Options     []string    `json:"options,omitempty" validate:"omitempty,dive,required"`
	Recommended Recommended `json:"recommended,omitzero"`
}

// Set is an ordered, immutable list of questions with a heading.
type Set struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions" validate:"required,min=1,dive"`
}

// Recommended holds the option(s) flagged as recommended. Files may give a
// single string or an array; the original shape is kept when re-encoding so
// the browser sees what the author wrote.
type Recommended struct {
	Values []string
	list   bool
}

// RecommendOne returns a Recommended holding a single option.
func RecommendOne(value string) Recommended {
	return Recommended{Values: []string{value}}
}

// RecommendMany returns a Recommended holding an array of options.
func RecommendMany(values ...string) Recommended {
	return Recommended{Values: values, list: true}
}

func (r Recommended) IsZero() bool {
	return len(r.Values) == 0
}

func (r Recommended) MarshalJSON() ([]byte, error) {
	if !r.list && len(r.Values) == 1 {
		return json.Marshal(r.Values[0])
	}
	if r.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Values)
}

func (r *Recommended) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Recommended{}
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*r = Recommended{}
			return nil
		}
		*r = RecommendOne(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("recommended must be a string or an array of strings")
	}
	*r = RecommendMany(many...)
	return nil
}

// Index maps question ids to questions for repeated lookups.
func (s *Set) Index() map[string]Question {
	index := make(map[string]Question, len(s.Questions))
	for _, q := range s.Questions {
		index[q.ID] = q
	}
	return index
}

// Hash returns the first 8 hex characters of the SHA-256 digest of the
// questions encoded as JSON. Any change to the questions changes the hash.
func (s *Set) Hash() string {
	data, err := json.Marshal(s.Questions)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}

// DraftKey is the browser storage key for drafts of this set. Drafts saved
// under one set's key are never visible to a different set.
func (s *Set) DraftKey() string {
	return DraftKeyPrefix + "-" + s.Hash()
}
