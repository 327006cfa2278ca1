package tree

import (
	"errors"

	goerrors "github.com/agilira/go-errors"
)

// Error codes for tree operations.
const (
	ErrCodeParse            = "AUG_PARSE_ERROR"
	ErrCodeNotFound         = "AUG_NOT_FOUND"
	ErrCodeAmbiguous        = "AUG_AMBIGUOUS_PATH"
	ErrCodeWrite            = "AUG_WRITE_ERROR"
	ErrCodeSyntax           = "AUG_PATH_SYNTAX"
	ErrCodeInvalidOperation = "AUG_INVALID_OPERATION"
)

// HasCode reports whether err or any error it wraps carries code.
func HasCode(err error, code goerrors.ErrorCode) bool {
	for err != nil {
		if coder, ok := err.(goerrors.ErrorCoder); ok && coder.ErrorCode() == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsAmbiguous reports whether err is an ambiguous-path error.
func IsAmbiguous(err error) bool { return HasCode(err, ErrCodeAmbiguous) }

// IsParse reports whether err is a parse error.
func IsParse(err error) bool { return HasCode(err, ErrCodeParse) }

// IsWrite reports whether err is a write error.
func IsWrite(err error) bool { return HasCode(err, ErrCodeWrite) }

func notFound(expr string) error {
	return goerrors.New(ErrCodeNotFound, "no node matches "+expr).
		WithContext("path", expr)
}

func ambiguous(expr string, n int) error {
	return goerrors.New(ErrCodeAmbiguous, "path "+expr+" matches more than one node").
		WithContext("path", expr).
		WithContext("matches", n)
}

func syntax(err error, expr string) error {
	return goerrors.Wrap(err, ErrCodeSyntax, err.Error()).
		WithContext("path", expr)
}

func invalid(msg string) error {
	return goerrors.New(ErrCodeInvalidOperation, msg)
}
