package core

import "database/sql"

// PositionalArgs returns the parameter values in order, dropping names.
func PositionalArgs(params []Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Value
	}
	return args
}

// NamedArgs binds named parameters with sql.Named and leaves unnamed ones
// positional.
func NamedArgs(params []Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		if name := p.BareName(); name != "" {
			args[i] = sql.Named(name, p.Value)
			continue
		}
		args[i] = p.Value
	}
	return args
}

// HasNames reports whether every parameter carries a name.
func HasNames(params []Param) bool {
	if len(params) == 0 {
		return false
	}
	for _, p := range params {
		if p.BareName() == "" {
			return false
		}
	}
	return true
}
