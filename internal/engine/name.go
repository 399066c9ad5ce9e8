package engine

import (
	"regexp"
	"strings"
)

// TableName identifies a table or view. Empty parts are omitted when
// rendered, so an unqualified name resolves against the session's default
// catalog and schema.
type TableName struct {
	Catalog string
	Schema  string
	Name    string
}

// ParseTableName splits a dotted name into its parts. One part is a bare
// name, two are schema.name and three are catalog.schema.name. Quoted
// identifiers containing dots are not supported.
func ParseTableName(s string) (TableName, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	for i, p := range parts {
		p = strings.Trim(p, `"`)
		if p == "" {
			return TableName{}, &NameError{Input: s}
		}
		parts[i] = p
	}
	switch len(parts) {
	case 1:
		return TableName{Name: parts[0]}, nil
	case 2:
		return TableName{Schema: parts[0], Name: parts[1]}, nil
	case 3:
		return TableName{Catalog: parts[0], Schema: parts[1], Name: parts[2]}, nil
	default:
		return TableName{}, &NameError{Input: s}
	}
}

// MustParseTableName is ParseTableName for literals known to be valid.
func MustParseTableName(s string) TableName {
	n, err := ParseTableName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Qualified reports whether the name carries a schema or catalog.
func (n TableName) Qualified() bool {
	return n.Catalog != "" || n.Schema != ""
}

// String renders the name as SQL, quoting parts that need it.
func (n TableName) String() string {
	var b strings.Builder
	if n.Catalog != "" {
		b.WriteString(QuoteIdent(n.Catalog))
		b.WriteByte('.')
	}
	if n.Schema != "" {
		b.WriteString(QuoteIdent(n.Schema))
		b.WriteByte('.')
	}
	b.WriteString(QuoteIdent(n.Name))
	return b.String()
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Words that DuckDB will not accept as bare identifiers in DDL.
var reservedWords = map[string]struct{}{
	"all": {}, "analyse": {}, "analyze": {}, "and": {}, "any": {}, "array": {}, "as": {},
	"asc": {}, "both": {}, "case": {}, "cast": {}, "check": {}, "collate": {}, "column": {},
	"constraint": {}, "create": {}, "default": {}, "desc": {}, "distinct": {}, "do": {},
	"else": {}, "end": {}, "except": {}, "false": {}, "for": {}, "foreign": {}, "from": {},
	"grant": {}, "group": {}, "having": {}, "in": {}, "intersect": {}, "into": {}, "limit": {},
	"not": {}, "null": {}, "offset": {}, "on": {}, "or": {}, "order": {}, "primary": {},
	"references": {}, "select": {}, "table": {}, "then": {}, "to": {}, "true": {}, "union": {},
	"unique": {}, "user": {}, "using": {}, "when": {}, "where": {}, "window": {}, "with": {},
}

// QuoteIdent returns ident unchanged when it is a plain lower-case
// identifier and double-quoted otherwise.
func QuoteIdent(ident string) string {
	if plainIdent.MatchString(ident) {
		if _, reserved := reservedWords[ident]; !reserved {
			return ident
		}
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
