package triage

import (
	"encoding/json"
	"fmt"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Answer is a yes/no reply to a tree question.
type Answer bool

const (
	Yes Answer = true
	No  Answer = false
)

func (a Answer) String() string {
	if a {
		return "yes"
	}
	return "no"
}

// ParseAnswer accepts yes/no in English or Spanish, with or without accent.
func ParseAnswer(s string) (Answer, error) {
	switch fold(s) {
	case "yes", "y", "si", "s", "true":
		return Yes, nil
	case "no", "n", "false":
		return No, nil
	}
	return No, fmt.Errorf("answer %q must be yes or no: %w", s, apperr.ErrInvalidInput)
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = Answer(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("answer must be a string or boolean: %w", apperr.ErrInvalidInput)
	}
	parsed, err := ParseAnswer(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
