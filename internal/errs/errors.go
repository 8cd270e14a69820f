// Package errs defines the typed configuration errors surfaced to
// operators when a cluster description fails validation.
package errs

import "fmt"

// InvalidSpec is returned by the name expander on malformed range
// notation or an empty expansion.
type InvalidSpec struct {
	Spec   string
	Reason string
}

func (e *InvalidSpec) Error() string {
	return fmt.Sprintf("invalid name spec %q: %s", e.Spec, e.Reason)
}

// InvalidInterval is returned by the time-interval parser when the
// numeric portion of a "<float><unit>" string cannot be parsed.
type InvalidInterval struct {
	Input string
	Err   error
}

func (e *InvalidInterval) Error() string {
	return fmt.Sprintf("invalid interval %q: %v", e.Input, e.Err)
}

func (e *InvalidInterval) Unwrap() error { return e.Err }

// MissingAttribute is returned by the topology model when a required
// key is absent from a description section.
type MissingAttribute struct {
	Section string
	Key     string
}

func (e *MissingAttribute) Error() string {
	return fmt.Sprintf("%s: missing required attribute %q", e.Section, e.Key)
}

// ArityMismatch is returned when a section's names/hosts/ports lists
// do not satisfy the section's cardinality invariant.
type ArityMismatch struct {
	Section string
	Detail  string
}

func (e *ArityMismatch) Error() string {
	return fmt.Sprintf("%s: arity mismatch: %s", e.Section, e.Detail)
}

// DuplicateName is returned when an updater or store name repeats
// within the same aggregator group.
type DuplicateName struct {
	Section string
	Group   string
	Name    string
}

func (e *DuplicateName) Error() string {
	return fmt.Sprintf("%s: duplicate name %q in group %q", e.Section, e.Name, e.Group)
}

// ConflictingMode is returned when an updater declares both `auto`
// and `push`.
type ConflictingMode struct {
	Group   string
	Updater string
}

func (e *ConflictingMode) Error() string {
	return fmt.Sprintf("updater %q in group %q: auto and push are mutually exclusive", e.Updater, e.Group)
}
