package engine

import "strings"

// OpKind identifies an abstract operation issued by the calling engine.
type OpKind int

const (
	OpCreateView OpKind = iota
	OpDropView
	OpDropTable
	OpReplaceQuery
	OpSetCatalog
	// OpExecute is a raw statement that bypasses translation.
	OpExecute
)

func (k OpKind) String() string {
	switch k {
	case OpCreateView:
		return "create_view"
	case OpDropView:
		return "drop_view"
	case OpDropTable:
		return "drop_table"
	case OpReplaceQuery:
		return "replace_query"
	case OpSetCatalog:
		return "set_catalog"
	case OpExecute:
		return "execute"
	default:
		return "unknown"
	}
}

// Op is one abstract operation with its arguments. Fields that do not apply
// to Kind are ignored.
type Op struct {
	Kind    OpKind
	Name    TableName
	Query   string
	Catalog string

	// Replace applies to OpCreateView.
	Replace bool
	// IfExists is ignore_if_not_exists for OpDropView and exists for OpDropTable.
	IfExists bool
	// Materialized and Cascade apply to OpDropView.
	Materialized bool
	Cascade      bool
}

// Outcome classifies what an adapter does with an operation.
type Outcome int

const (
	// PassThrough runs the backend's native statements unchanged.
	PassThrough Outcome = iota
	// Rewrite runs a different statement sequence with equivalent effect.
	Rewrite
	// NoOp discards the operation; nothing reaches the backend.
	NoOp
)

func (o Outcome) String() string {
	switch o {
	case PassThrough:
		return "passthrough"
	case Rewrite:
		return "rewrite"
	case NoOp:
		return "noop"
	default:
		return "unknown"
	}
}

// Translation is the result of mapping an Op to backend statements.
type Translation struct {
	Outcome    Outcome
	Statements []string
}

func passThrough(stmts ...string) Translation {
	return Translation{Outcome: PassThrough, Statements: stmts}
}

func rewrite(stmts ...string) Translation {
	return Translation{Outcome: Rewrite, Statements: stmts}
}

func noOp() Translation {
	return Translation{Outcome: NoOp}
}

// SQL joins the statements into a script, one statement per line.
func (t Translation) SQL() string {
	if len(t.Statements) == 0 {
		return ""
	}
	return strings.Join(t.Statements, ";\n") + ";\n"
}

// Translator maps operations to backend statements without executing them.
type Translator interface {
	Translate(op Op) Translation
}
