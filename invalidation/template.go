package invalidation

import (
	"strings"

	"github.com/jmcleod/tablehand/cache"
)

type paramKind int

const (
	paramLiteral paramKind = iota
	paramAny
	paramBound
)

// Param is one positional component of a Template.
type Param struct {
	kind  paramKind
	value string
}

// Lit matches exactly v.
func Lit(v string) Param { return Param{kind: paramLiteral, value: v} }

// Bind takes its value from the outcome id called name.
func Bind(name string) Param { return Param{kind: paramBound, value: name} }

// Any matches every value.
var Any = Param{kind: paramAny}

func (p Param) String() string {
	switch p.kind {
	case paramAny:
		return "*"
	case paramBound:
		return "{" + p.value + "}"
	default:
		return p.value
	}
}

// Template is a cache pattern whose params may be filled from an Outcome.
type Template struct {
	Entity string
	Params []Param
}

// T builds a template.
func T(entity string, params ...Param) Template {
	return Template{Entity: entity, Params: params}
}

// resolve turns the template into a pattern. Ids missing from the outcome
// become wildcards and are reported so the caller can log them.
func (t Template) resolve(ids map[string]string) (cache.Pattern, []string) {
	var missing []string
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		switch p.kind {
		case paramAny:
			params[i] = cache.Wildcard
		case paramBound:
			if v, ok := ids[p.value]; ok && v != "" {
				params[i] = v
			} else {
				params[i] = cache.Wildcard
				missing = append(missing, p.value)
			}
		default:
			params[i] = p.value
		}
	}
	return cache.Match(t.Entity, params...), missing
}

func (t Template) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return t.Entity + "(" + strings.Join(parts, ",") + ")"
}
