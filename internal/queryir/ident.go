package queryir

import (
	"regexp"

	"github.com/roach88/restsql/internal/ir"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pathPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// IsIdentifier reports whether name is a bare SQL identifier: a letter or
// underscore followed by letters, digits and underscores.
func IsIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// IsFieldPath reports whether name is one or more identifiers joined by
// dots, the form of nested search fields and namespaced tables.
func IsFieldPath(name string) bool {
	return pathPattern.MatchString(name)
}

// CheckIdentifier returns an INVALID_QUERY error when valid rejects name.
// what names the role of the identifier in the message.
func CheckIdentifier(name, what string, valid func(string) bool) error {
	if valid(name) {
		return nil
	}
	return ir.Errorf(ir.ErrCodeInvalidQuery, name, "%s %q is not a valid identifier", what, name)
}

// CheckIdentifiers validates every name a backend compiler writes into
// request text: read columns and projection aliases.
func (s Subquery) CheckIdentifiers(valid func(string) bool) error {
	for _, col := range s.Columns() {
		if err := CheckIdentifier(col, "column", valid); err != nil {
			return err
		}
	}
	for _, f := range s.Fields {
		if err := CheckIdentifier(f.Alias, "alias", valid); err != nil {
			return err
		}
	}
	return nil
}
