// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidRepoFormat is returned when a git remote URL cannot be resolved to an 'owner/name' pair.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected a git URL ending in 'owner/name'", e.Repo)
}

// ErrUnknownVariant is returned when a persisted tagged union carries a tag we do not recognise.
type ErrUnknownVariant struct {
	Type string
	Tag  string
}

func (e *ErrUnknownVariant) Error() string {
	return fmt.Sprintf("unknown %s variant %q", e.Type, e.Tag)
}
