package evaluation

import (
	"errors"
	"fmt"

	"github.com/pavelanni/literable/internal/llm"
)

// Failure kinds. Every per-item failure wraps exactly one of them.
var (
	ErrConfiguration = errors.New("configuration failure")
	ErrTransient     = llm.ErrTransient
	ErrParse         = errors.New("parse failure")
	ErrPersistence   = errors.New("persistence failure")
)

// ItemError is the failure of one batch item.
type ItemError struct {
	Kind error
	Err  error
	Raw  string // model reply, set for parse failures
}

func (e *ItemError) Error() string {
	if e.Kind == ErrTransient {
		// llm errors already read "llm call failed: ..."
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *ItemError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newItemError(kind, err error) *ItemError {
	return &ItemError{Kind: kind, Err: err}
}
