package tokens

import (
	"errors"
	"fmt"
)

// ContextOverflowError reports that a prompt cannot fit the token budget even
// after the completion allowance has been reduced to its configured floor.
// ExcessTokens is the exact amount the caller must shed (by chunking) to fit.
type ContextOverflowError struct {
	EstimatedTokens int
	MaxTokens       int
	ExcessTokens    int
}

func (e *ContextOverflowError) Error() string {
	return fmt.Sprintf("context overflow: estimated %d prompt tokens (limit %d), %d tokens over budget",
		e.EstimatedTokens, e.MaxTokens, e.ExcessTokens)
}

// IsContextOverflow reports whether err is a ContextOverflowError.
func IsContextOverflow(err error) bool {
	var e *ContextOverflowError
	return errors.As(err, &e)
}
