package sheet

import (
	"fmt"
	"strings"
)

// Columns maps a placeholder name to the spreadsheet columns that may hold
// its value, in order of preference.
type Columns map[string][]string

// ParseColumn parses "name=alias1,alias2". The placeholder name itself is
// always tried first.
func (c Columns) ParseColumn(spec string) error {
	name, aliases, ok := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("invalid column mapping %q: use name=column[,column...]", spec)
	}
	list := []string{name}
	for _, a := range strings.Split(aliases, ",") {
		if a = strings.TrimSpace(a); a != "" && a != name {
			list = append(list, a)
		}
	}
	c[name] = list
	return nil
}

// Vars resolves every mapped placeholder against row. Columns of the row
// that are not mapped are passed through under their own name.
func (c Columns) Vars(row Row) map[string]string {
	vars := make(map[string]string, len(row)+len(c))
	for k, v := range row {
		vars[k] = v
	}
	for name, columns := range c {
		vars[name] = row.Get(columns...)
	}
	return vars
}
