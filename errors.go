package navauth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeSessionResolution   = "SESSION_RESOLUTION_FAILED"
	textCodeCallbackMissing     = "CALLBACK_MISSING_FIELDS"
	textCodeInvalidRouteTable   = "INVALID_ROUTE_TABLE"
	textCodeRouteNotFound       = "ROUTE_NOT_FOUND"
	textCodeRedirectLoop        = "REDIRECT_LOOP"
	textCodeNavigationCancelled = "NAVIGATION_CANCELLED"
	textCodeLoopClosed          = "LOOP_CLOSED"
)

// ErrSessionResolution means the provider was unreachable or reported a
// session we cannot trust. The holder absorbs it as Absent.
var ErrSessionResolution = goerrors.New("unable to resolve session", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionResolution).
	WithCode(goerrors.CodeUnauthorized)

// ErrCallbackMissingFields is returned by the callback resolver when required
// fragment keys are missing. Metadata "missing" lists them.
var ErrCallbackMissingFields = goerrors.New("callback fragment is missing required fields", goerrors.CategoryBadInput).
	WithTextCode(textCodeCallbackMissing).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidRouteTable is returned by NewRouter for a bad route table.
var ErrInvalidRouteTable = goerrors.New("invalid route table", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidRouteTable).
	WithCode(goerrors.CodeBadRequest)

// ErrRouteNotFound is returned for named navigation to an unknown name.
var ErrRouteNotFound = goerrors.New("route not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeRouteNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRedirectLoop aborts a navigation whose guards keep redirecting.
var ErrRedirectLoop = goerrors.New("too many guard redirects", goerrors.CategoryInternal).
	WithTextCode(textCodeRedirectLoop).
	WithCode(goerrors.CodeInternal)

// ErrNavigationCancelled is reported to callers of a superseded navigation.
var ErrNavigationCancelled = goerrors.New("navigation cancelled by a newer navigation", goerrors.CategoryOperation).
	WithTextCode(textCodeNavigationCancelled).
	WithCode(goerrors.CodeConflict)

// ErrLoopClosed is returned when scheduling on a stopped loop.
var ErrLoopClosed = goerrors.New("loop is closed", goerrors.CategoryOperation).
	WithTextCode(textCodeLoopClosed).
	WithCode(goerrors.CodeInternal)

func withMetadata(base *goerrors.Error, message string, metadata map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if message != "" {
		clone.Message = message
	}
	clone.Source = base
	if len(metadata) == 0 {
		return clone
	}
	return clone.WithMetadata(metadata)
}

func sessionResolutionError(reason string) error {
	return withMetadata(ErrSessionResolution, "", map[string]any{"reason": reason})
}

// HasTextCode reports whether err carries the text code of base.
func HasTextCode(err error, base *goerrors.Error) bool {
	if err == nil || base == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == base.TextCode
}

// MissingCallbackFields returns the keys reported missing by the callback
// resolver, or nil when err is not a missing fields error.
func MissingCallbackFields(err error) []string {
	if !HasTextCode(err, ErrCallbackMissingFields) {
		return nil
	}
	var richErr *goerrors.Error
	goerrors.As(err, &richErr)
	if missing, ok := richErr.Metadata["missing"].([]string); ok {
		return missing
	}
	return nil
}

// IsNavigationCancelled reports whether err is ErrNavigationCancelled.
func IsNavigationCancelled(err error) bool {
	return HasTextCode(err, ErrNavigationCancelled)
}
