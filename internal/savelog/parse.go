// Package savelog reads the save log the test server writes whenever the
// editor issues a save request, and decodes the most recent envelope in it.
package savelog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

// Separator is written by the test server between two save requests.
const Separator = "\n***\n"

// ErrMalformedPayload is matched by every *PayloadError.
var ErrMalformedPayload = errors.New("malformed save payload")

// lastObjectRe collapses everything up to the last glued object boundary on a
// line. Like the server it mirrors, '.' does not cross newlines.
var lastObjectRe = regexp.MustCompile(`.*\}\{`)

// PayloadError reports a save log that could not be decoded after repair.
type PayloadError struct {
	// Raw is the text as fetched, before any repair.
	Raw string
	// Repaired is the text that was handed to the decoder.
	Repaired string
	Err      error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: %v (repaired text %q)", ErrMalformedPayload, e.Err, truncate(e.Repaired, 120))
}

func (e *PayloadError) Unwrap() []error { return []error{ErrMalformedPayload, e.Err} }

// Envelope is one decoded save request. Keys are kept as sent so that a
// comparison notices unexpected fields.
type Envelope map[string]interface{}

// Command returns the "command" field, or "" if absent or not a string.
func (e Envelope) Command() string {
	s, _ := e["command"].(string)
	return s
}

// Data returns the serialized document and whether it was present as a string.
func (e Envelope) Data() (string, bool) {
	s, ok := e["data"].(string)
	return s, ok
}

// Version returns the raw "version" value. Servers send strings or numbers.
func (e Envelope) Version() interface{} { return e["version"] }

// WithoutVersion returns a shallow copy of e minus the "version" key.
func (e Envelope) WithoutVersion() Envelope {
	out := make(Envelope, len(e))
	for k, v := range e {
		if k == "version" {
			continue
		}
		out[k] = v
	}
	return out
}

// Repair removes separators, trims the text, and keeps only what follows the
// last "}{" boundary on each line. It handles exactly one failure mode: two
// objects written back to back without a separator.
func Repair(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, Separator, ""))
	return lastObjectRe.ReplaceAllString(text, "{")
}

// Parse repairs text and decodes it into an Envelope. The decoded value must
// be a JSON object.
func Parse(text string) (Envelope, error) {
	repaired := Repair(text)

	var env Envelope
	if err := json.Unmarshal([]byte(repaired), &env); err != nil {
		return nil, &PayloadError{Raw: text, Repaired: repaired, Err: err}
	}
	if env == nil {
		return nil, &PayloadError{Raw: text, Repaired: repaired, Err: errors.New("payload is not a JSON object")}
	}
	return env, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
