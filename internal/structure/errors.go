package structure

import (
	"fmt"
	"strings"
)

// StructureConflictError is returned by Ensure when a required path exists
// with the wrong type. Created lists the entries made before the conflict
// was found.
type StructureConflictError struct {
	Path    string
	Want    Kind
	Got     string
	Created []Entry
}

func (e *StructureConflictError) Error() string {
	msg := fmt.Sprintf("structure conflict at %s: want %s, found %s", e.Path, e.Want, e.Got)
	if len(e.Created) > 0 {
		names := make([]string, len(e.Created))
		for i, c := range e.Created {
			names[i] = c.String()
		}
		msg += fmt.Sprintf(" (created before conflict: %s)", strings.Join(names, ", "))
	}
	return msg
}
