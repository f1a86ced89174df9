package token

import (
	stderrors "errors"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenExpired   = "TOKEN_EXPIRED"
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	TextCodeNoSession      = "NO_SESSION"
	TextCodeSubjectChanged = "SUBJECT_CHANGED"
)

var (
	// ErrTokenExpired is returned for a token past its exp claim.
	ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(goerrors.CodeUnauthorized)

	// ErrTokenMalformed is returned for a token that fails verification.
	ErrTokenMalformed = goerrors.New("token malformed", goerrors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed).
				WithCode(goerrors.CodeUnauthorized)

	// ErrNoSession is returned by operations that need a signed in user.
	ErrNoSession = goerrors.New("no active session", goerrors.CategoryAuth).
			WithTextCode(TextCodeNoSession).
			WithCode(goerrors.CodeUnauthorized)

	// ErrSubjectChanged is returned when a refresh carries another user.
	ErrSubjectChanged = goerrors.New("refreshed token belongs to another subject", goerrors.CategoryConflict).
				WithTextCode(TextCodeSubjectChanged).
				WithCode(goerrors.CodeConflict)
)

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	clone := ErrTokenMalformed.Clone()
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		clone = ErrTokenExpired.Clone()
	}

	if clone == nil {
		return err
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "token",
		"cause":    err.Error(),
	})
}
