package engine

import (
	"fmt"
	"regexp"
	"strconv"
)

// variablePattern matches {{ variable }} templates.
var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Built-in template variables.
const (
	VarPassword = "password"
	VarAddress  = "address"
	VarScenario = "scenario"
)

// lookupVar resolves a template variable against scenario variables and the
// built-ins.
func (tc *Context) lookupVar(name string) (any, bool) {
	if v, ok := tc.Get(name); ok {
		return v, true
	}
	switch name {
	case VarPassword:
		return tc.settings.Password, true
	case VarAddress:
		return tc.settings.Address, true
	case VarScenario:
		return tc.name, true
	}
	return nil, false
}

// Interpolate replaces {{ variable }} placeholders in a string. Unknown
// variables are left unchanged.
func Interpolate(template string, tc *Context) string {
	if tc == nil {
		return template
	}

	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := variablePattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		value, ok := tc.lookupVar(sub[1])
		if !ok {
			return match
		}
		return valueToString(value)
	})
}

// InterpolateParams returns a copy of params with every string value
// interpolated, recursing into lists and maps.
func InterpolateParams(params map[string]interface{}, tc *Context) map[string]interface{} {
	if params == nil {
		return nil
	}
	result := make(map[string]interface{}, len(params))
	for key, value := range params {
		result[key] = interpolateValue(value, tc)
	}
	return result
}

func interpolateValue(value interface{}, tc *Context) interface{} {
	switch v := value.(type) {
	case string:
		return Interpolate(v, tc)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = interpolateValue(item, tc)
		}
		return out
	case map[string]interface{}:
		return InterpolateParams(v, tc)
	default:
		return value
	}
}

func valueToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
