package canonical

import "fmt"

// CanonicalizationError reports a value that has no canonical form.
// Path is a slash-separated location inside the input ("" for the root).
type CanonicalizationError struct {
	Path   string
	Reason string
}

func (e *CanonicalizationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("canonicalize: %s", e.Reason)
	}
	return fmt.Sprintf("canonicalize %s: %s", e.Path, e.Reason)
}
