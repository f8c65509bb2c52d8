package codegen

import (
	"fmt"
	"strings"

	"modelforge/internal/dsl"
)

// DefaultNamespace is the namespace of generated models.
const DefaultNamespace = `App\Models`

// Generator renders artifacts. The zero value uses DefaultNamespace.
type Generator struct {
	Namespace string
}

func (g Generator) namespace() string {
	if g.Namespace == "" {
		return DefaultNamespace
	}
	return strings.Trim(g.Namespace, `\`)
}

// GenerateModelSource renders the Eloquent model class for e.
func (g Generator) GenerateModelSource(e *dsl.Entity) string {
	ns := g.namespace()
	var sb strings.Builder

	fmt.Fprintf(&sb, "<?php\n\nnamespace %s;\n\nuse Illuminate\\Database\\Eloquent\\Model;\n\n", ns)
	fmt.Fprintf(&sb, "class %s extends Model\n{\n", e.Name)
	fmt.Fprintf(&sb, "    protected $table = '%s';\n\n", e.Table)

	sb.WriteString("    protected $fillable = [\n")
	for _, f := range e.Fields {
		fmt.Fprintf(&sb, "        '%s',\n", f.Name)
	}
	sb.WriteString("    ];\n\n")

	if len(e.Casts) > 0 {
		sb.WriteString("    protected $casts = [\n")
		for _, c := range e.Casts {
			fmt.Fprintf(&sb, "        '%s' => '%s',\n", c.Key, c.Type)
		}
		sb.WriteString("    ];\n\n")
	}

	if len(e.Appends) > 0 {
		sb.WriteString("    protected $appends = [\n")
		for _, a := range e.Appends {
			fmt.Fprintf(&sb, "        '%s',\n", AppendAttribute(a.Name))
		}
		sb.WriteString("    ];\n\n")
	}

	for _, r := range e.Relations {
		if r.Name == "" || r.ForeignKey == "" {
			continue
		}
		fmt.Fprintf(&sb, "    public function %s()\n    {\n", r.Name)
		fmt.Fprintf(&sb, "        return $this->belongsTo(\\%s\\%s::class, '%s');\n    }\n\n",
			ns, UpperFirst(r.Name), r.ForeignKey)
	}

	for _, a := range e.Appends {
		switch a.Type {
		case dsl.AppendMath:
			formula, ok := a.Formula()
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "    public function %s()\n    {\n        return %s;\n    }\n\n", a.Name, formula)
		case dsl.AppendConcat:
			src := a.SourceFields()
			if src == nil {
				continue
			}
			refs := make([]string, 0, len(src))
			for _, f := range src {
				refs = append(refs, "$this->"+f)
			}
			sep := strings.ReplaceAll(a.Separator(), "'", `\'`)
			fmt.Fprintf(&sb, "    public function %s()\n    {\n        return implode('%s', [%s]);\n    }\n\n",
				ConcatAccessor(a.Name), sep, strings.Join(refs, ", "))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}
