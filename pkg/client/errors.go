package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Error is returned for every failed API call. Status is zero for transport
// failures, in which case Err holds the cause.
type Error struct {
	Status  int
	Message string
	// Fields holds per-field messages from a validation response, keyed by
	// dotted path ("branches.0.name").
	Fields map[string][]string
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("client: transport: %s", e.Message)
	}
	return fmt.Sprintf("client: %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized reports a 401 that survived the refresh attempt.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// NotFound reports a 404.
func (e *Error) NotFound() bool {
	return e.Status == http.StatusNotFound
}

var messageKeys = []string{"detail", "error", "message"}

// parseError builds the Error for a non-2xx response. The message is taken
// verbatim from detail, error or message; otherwise the raw body is used.
func parseError(status int, body []byte) *Error {
	apiErr := &Error{Status: status, Body: body}
	raw := strings.TrimSpace(string(body))

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		switch v := decoded.(type) {
		case map[string]any:
			for _, key := range messageKeys {
				if msg := firstMessage(v[key]); msg != "" {
					apiErr.Message = msg
					break
				}
			}
			fields := map[string][]string{}
			for key, value := range v {
				if isMessageKey(key) {
					continue
				}
				flattenMessages(fields, key, value)
			}
			if len(fields) > 0 {
				apiErr.Fields = fields
			}
		case []any:
			apiErr.Message = firstMessage(v)
		case string:
			apiErr.Message = v
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = raw
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func isMessageKey(key string) bool {
	for _, candidate := range messageKeys {
		if key == candidate {
			return true
		}
	}
	return false
}

func firstMessage(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if msg := firstMessage(item); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func flattenMessages(dest map[string][]string, path string, value any) {
	switch v := value.(type) {
	case string:
		if msg := strings.TrimSpace(v); msg != "" {
			dest[path] = append(dest[path], msg)
		}
	case []any:
		for i, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				flattenMessages(dest, path+"."+strconv.Itoa(i), item)
			default:
				flattenMessages(dest, path, item)
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			flattenMessages(dest, path+"."+key, v[key])
		}
	case nil:
	default:
		dest[path] = append(dest[path], fmt.Sprint(v))
	}
}
