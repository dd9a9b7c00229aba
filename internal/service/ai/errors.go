package ai

import "fmt"

// ProviderError reports an upstream LLM failure, either while opening the
// stream or after some fragments were produced.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
