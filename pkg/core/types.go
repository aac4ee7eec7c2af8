package core

import (
	"strconv"
	"strings"
	"time"
)

// QueryKind is the semantic classification of a routine name or query text.
// It decides whether a command runs as text or as a named routine invocation.
type QueryKind int

const (
	// KindAuto asks the executor to classify the command text at call time.
	KindAuto QueryKind = iota
	StandardStoredProcedure
	UserDefinedStoredProcedure
	Function
	TableValuedFunction
	View
	Trigger
	InlineTableValuedFunction
	ScalarValuedFunction
	Other
	SelectQuery
)

var kindNames = map[QueryKind]string{
	KindAuto:                   "Auto",
	StandardStoredProcedure:    "StandardStoredProcedure",
	UserDefinedStoredProcedure: "UserDefinedStoredProcedure",
	Function:                   "Function",
	TableValuedFunction:        "TableValuedFunction",
	View:                       "View",
	Trigger:                    "Trigger",
	InlineTableValuedFunction:  "InlineTableValuedFunction",
	ScalarValuedFunction:       "ScalarValuedFunction",
	Other:                      "Other",
	SelectQuery:                "SelectQuery",
}

func (k QueryKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "QueryKind(" + strconv.Itoa(int(k)) + ")"
}

// IsRoutine reports whether commands of this kind are invoked as a stored
// routine rather than executed as text.
func (k QueryKind) IsRoutine() bool {
	return k == StandardStoredProcedure || k == UserDefinedStoredProcedure
}

// Param is a single named command parameter. Name may be empty for
// positional binding; a leading '@', ':' or '$' is ignored.
type Param struct {
	Name  string
	Value any
}

// P is shorthand for building a Param.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// BareName returns the parameter name without its marker prefix.
func (p Param) BareName() string {
	return strings.TrimLeft(p.Name, "@:$")
}

// CommandSpec describes one command to execute. It is built per call and
// never persisted.
type CommandSpec struct {
	// Text is either SQL text or a routine name, depending on Kind.
	Text string
	// Kind decides text vs routine execution. KindAuto classifies Text.
	Kind QueryKind
	// Params are bound in order.
	Params []Param
	// Timeout bounds the command. Zero means the executor default.
	Timeout time.Duration
}

// Command returns a CommandSpec with an automatically classified kind.
func Command(text string, params ...Param) CommandSpec {
	return CommandSpec{Text: text, Kind: KindAuto, Params: params}
}

// Text returns a CommandSpec that always executes as SQL text.
func Text(query string, params ...Param) CommandSpec {
	return CommandSpec{Text: query, Kind: Other, Params: params}
}

// Routine returns a CommandSpec that invokes a stored procedure by name.
func Routine(name string, params ...Param) CommandSpec {
	return CommandSpec{Text: name, Kind: StandardStoredProcedure, Params: params}
}

// BatchEntry is one statement of a batch.
type BatchEntry struct {
	Query  string
	Params []Param
}

// Table is a fully materialized tabular result or bulk-load payload.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Maps converts every row of the table to a Row keyed by column name.
func (t Table) Maps() []Row {
	out := make([]Row, 0, len(t.Rows))
	for _, values := range t.Rows {
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out
}

// DataSet holds every result set returned by one command.
type DataSet []Table

// ParamMode is the declared direction of a routine parameter.
type ParamMode string

const (
	ParamIn     ParamMode = "IN"
	ParamOut    ParamMode = "OUT"
	ParamInOut  ParamMode = "INOUT"
	ParamReturn ParamMode = "RETURN"
)

// ParamDescriptor is one parameter as declared in the database catalog.
type ParamDescriptor struct {
	Name     string
	DataType string
	Mode     ParamMode
	Ordinal  int
}

// IsInput reports whether the parameter accepts a caller-supplied value.
func (p ParamDescriptor) IsInput() bool {
	return p.Mode == ParamIn || p.Mode == ParamInOut || p.Mode == ""
}

// RoutineDescriptor is the parameter list of a routine derived from the
// catalog. It can be inspected before anything is bound or executed.
type RoutineDescriptor struct {
	Name   string
	Params []ParamDescriptor
}

// Inputs returns the parameters that take caller values, in declared order,
// skipping the return-value slot.
func (d RoutineDescriptor) Inputs() []ParamDescriptor {
	var inputs []ParamDescriptor
	for _, p := range d.Params {
		if p.Mode == ParamReturn || (p.Ordinal == 0 && p.Name == "") {
			continue
		}
		if p.IsInput() {
			inputs = append(inputs, p)
		}
	}
	return inputs
}

// Bind pairs positional values with the declared inputs. Only
// min(declared, supplied) parameters are bound; nil binds as SQL NULL.
func (d RoutineDescriptor) Bind(values []any) []Param {
	inputs := d.Inputs()
	n := min(len(inputs), len(values))
	params := make([]Param, 0, n)
	for i := 0; i < n; i++ {
		params = append(params, Param{Name: inputs[i].Name, Value: values[i]})
	}
	return params
}

// ConnectionConfig carries the pieces dialects need to build a DSN.
type ConnectionConfig struct {
	Server   string
	User     string
	Password string
	Database string
	// Timeout is the connect timeout. Zero means DefaultConnectTimeout.
	Timeout                time.Duration
	Encrypt                bool
	TrustServerCertificate bool
	IntegratedSecurity     bool
	// Params are appended to the DSN verbatim.
	Params map[string]string
}

// DefaultConnectTimeout matches the connect timeout used when none is set.
const DefaultConnectTimeout = 600 * time.Second

// Validate checks the fields every network dialect requires.
func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return NewError(KindValidation, "config", "", ErrMissingServer)
	}
	if strings.TrimSpace(c.Database) == "" {
		return NewError(KindValidation, "config", "", ErrMissingDatabase)
	}
	if c.IntegratedSecurity {
		return nil
	}
	if strings.TrimSpace(c.User) == "" {
		return NewError(KindValidation, "config", "", ErrMissingUser)
	}
	if strings.TrimSpace(c.Password) == "" {
		return NewError(KindValidation, "config", "", ErrMissingPassword)
	}
	return nil
}

// ConnectTimeout returns the configured timeout or the default.
func (c ConnectionConfig) ConnectTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultConnectTimeout
	}
	return c.Timeout
}
