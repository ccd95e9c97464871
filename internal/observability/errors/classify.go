// Package errors normalizes Go errors into stable class names for metric and
// log tagging.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/draftforge/composerd/internal/errors"
)

// Classify returns a normalized class name for err. Application errors map to
// their error code, context cancellation and deadline errors map to fixed
// names, and anything else falls back to the innermost concrete type. The
// result is stable across wrapping, so dashboards can group on it.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.Canceled):
		return "context_canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "context_deadline"
	}

	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}

	return innermostTypeName(err)
}

func innermostTypeName(err error) string {
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
