// Package feedback turns submission outcomes into user-facing messages.
package feedback

import (
	"errors"
	"sort"
	"strings"

	"github.com/goliatone/go-formsync/pkg/auth"
	"github.com/goliatone/go-formsync/pkg/client"
	"github.com/goliatone/go-formsync/pkg/model"
)

// Feedback is what a form shows after a submission.
type Feedback struct {
	Success string
	Error   string
	// Fields holds validation messages by dotted schema path.
	Fields map[string][]string
}

// Succeeded builds a success feedback.
func Succeeded(message string) Feedback {
	return Feedback{Success: message}
}

// FromError builds the feedback for a failed submission. Server messages are
// kept verbatim.
func FromError(schema model.EntitySchema, err error) Feedback {
	if err == nil {
		return Feedback{}
	}

	var apiErr *client.Error
	switch {
	case errors.As(err, &apiErr):
		mapping := MapErrorPayload(schema, apiErr.Fields)
		message := apiErr.Message
		if len(mapping.Form) > 0 && len(apiErr.Fields) > 0 && message == strings.TrimSpace(string(apiErr.Body)) {
			message = strings.Join(mapping.Form, " ")
		}
		if apiErr.Status == 0 {
			message = "Network error: " + apiErr.Message
		}
		return Feedback{Error: message, Fields: mapping.Fields}
	case errors.Is(err, auth.ErrNotLoggedIn):
		return Feedback{Error: "You are not logged in."}
	case errors.Is(err, auth.ErrRefreshFailed):
		return Feedback{Error: "Your session has expired. Please log in again."}
	default:
		return Feedback{Error: err.Error()}
	}
}

// Failed reports whether the feedback carries an error.
func (f Feedback) Failed() bool {
	return f.Error != "" || len(f.Fields) > 0
}

// FieldError returns the first message for a field.
func (f Feedback) FieldError(path string) string {
	if messages := f.Fields[path]; len(messages) > 0 {
		return messages[0]
	}
	return ""
}

// FieldPaths lists the fields with messages, sorted.
func (f Feedback) FieldPaths() []string {
	paths := make([]string, 0, len(f.Fields))
	for path := range f.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
