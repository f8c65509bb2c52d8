package codegen

import "strings"

// DefaultVerb is used for any column-type token missing from the table.
const DefaultVerb = "string"

// ForeignIDVerb replaces the declared verb for columns named by a relation foreign key.
const ForeignIDVerb = "foreignId"

// columnVerbs maps lower-cased column-type tokens to Blueprint column methods.
var columnVerbs = map[string]string{
	"string":             "string",
	"int":                "integer",
	"integer":            "integer",
	"bigint":             "bigInteger",
	"biginteger":         "bigInteger",
	"bigintunsigned":     "unsignedBigInteger",
	"unsignedbiginteger": "unsignedBigInteger",
	"float":              "float",
	"double":             "double",
	"decimal":            "decimal",
	"date":               "date",
	"datetime":           "dateTime",
	"text":               "text",
	"boolean":            "boolean",
	"json":               "json",
	"jsonb":              "json",
	"timestamp":          "timestamp",
	"time":               "time",
	"uuid":               "uuid",
	"binary":             "binary",
	"enum":               "enum",
	"set":                "set",
}

// MapColumnType returns the schema-builder verb for a column-type token. Unknown tokens fall back to
// DefaultVerb; a miss is never an error.
func MapColumnType(token string) string {
	if v, ok := columnVerbs[strings.ToLower(token)]; ok {
		return v
	}
	return DefaultVerb
}

// KnownColumnType reports whether token has an explicit mapping.
func KnownColumnType(token string) bool {
	_, ok := columnVerbs[strings.ToLower(token)]
	return ok
}
