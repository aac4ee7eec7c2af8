package core

import (
	"regexp"
	"strings"
)

// Routine naming prefixes, tested in this order after the select prefix.
const (
	PrefixSP     = "SP"
	PrefixUSP    = "USP"
	PrefixFN     = "FN"
	PrefixTVF    = "TVF"
	PrefixView   = "V"
	PrefixTR     = "TR"
	PrefixIFT    = "IFT"
	PrefixSVF    = "SVF"
	PrefixSelect = "SEL"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// prefixOrder is the fixed priority used by Classify. Overlapping prefixes
// are resolved by position only.
var prefixOrder = []struct {
	prefix string
	kind   QueryKind
}{
	{PrefixSP, StandardStoredProcedure},
	{PrefixUSP, UserDefinedStoredProcedure},
	{PrefixFN, Function},
	{PrefixTVF, TableValuedFunction},
	{PrefixView, View},
	{PrefixTR, Trigger},
	{PrefixIFT, InlineTableValuedFunction},
	{PrefixSVF, ScalarValuedFunction},
}

// Validate reports whether name is a well-formed routine name.
func Validate(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return validName.MatchString(name)
}

// Classify maps a routine name or query text to its QueryKind.
//
// Text starting with "SEL" is a SelectQuery regardless of what follows.
// Anything else must be a valid routine name, otherwise a validation error
// wrapping ErrInvalidName is returned.
func Classify(name string) (QueryKind, error) {
	if hasPrefixFold(name, PrefixSelect) {
		return SelectQuery, nil
	}
	if !Validate(name) {
		return Other, NewError(KindValidation, "classify", name, ErrInvalidName)
	}
	for _, p := range prefixOrder {
		if hasPrefixFold(name, p.prefix) {
			return p.kind, nil
		}
	}
	return Other, nil
}

// IsStoredProcedure reports whether name is valid and carries a stored
// procedure prefix.
func IsStoredProcedure(name string) bool {
	if !Validate(name) {
		return false
	}
	return hasPrefixFold(name, PrefixSP) || hasPrefixFold(name, PrefixUSP)
}

// Resolve returns the kind of spec, classifying its text when the kind is
// KindAuto. Text that is not a well-formed name is SQL text and resolves to
// Other.
func Resolve(spec CommandSpec) QueryKind {
	if spec.Kind != KindAuto {
		return spec.Kind
	}
	kind, err := Classify(spec.Text)
	if err != nil {
		return Other
	}
	return kind
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
