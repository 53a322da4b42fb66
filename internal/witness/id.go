package witness

import (
	"fmt"
	"strings"
)

// ID is the stable identity of a property: the defining module plus the
// property name. IDs key the persisted counterexample file, so they must be
// deterministic across runs.
type ID struct {
	Module string
	Name   string
}

// NewID creates a property identity.
func NewID(module, name string) ID {
	return ID{Module: module, Name: name}
}

// String renders the identity in "Module.name" form, the form used as the
// key in the counterexample file.
func (id ID) String() string {
	return id.Module + "." + id.Name
}

// ParseID parses a "Module.name" key back into an ID. The split is on the
// LAST dot, so dotted module paths survive the round trip.
func ParseID(s string) (ID, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return ID{}, fmt.Errorf("malformed property identity %q: want \"Module.name\"", s)
	}
	return ID{Module: s[:i], Name: s[i+1:]}, nil
}
