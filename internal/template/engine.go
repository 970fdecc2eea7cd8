package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Engine expands {{ variable }} placeholders in descriptor values.
// Both "{{ name }}" and "{{ .name }}" forms are accepted, with or without
// surrounding spaces.
type Engine struct {
	templatePattern *regexp.Regexp
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		templatePattern: regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`),
	}
}

// MissingVariablesError lists placeholders that had no value in the context.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing template variables: %s", strings.Join(e.Names, ", "))
}

// Replace replaces all template variables in a value with actual values from the context
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.ReplaceString(v, context)
	case map[string]interface{}:
		return e.replaceMapTemplates(v, context)
	case map[string]string:
		return e.ExpandMap(v, context)
	case []string:
		return e.ExpandList(v, context)
	case []interface{}:
		return e.replaceSliceTemplates(v, context)
	default:
		return value, nil
	}
}

// ReplaceString expands every placeholder in s in a single pass. Replacement
// values are not expanded again.
func (e *Engine) ReplaceString(s string, context map[string]interface{}) (string, error) {
	missing := map[string]bool{}
	result := e.templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := e.templatePattern.FindStringSubmatch(match)
		replacement, exists := context[sub[1]]
		if !exists {
			missing[sub[1]] = true
			return match
		}
		return stringify(replacement)
	})

	if len(missing) > 0 {
		return "", &MissingVariablesError{Names: sortedKeys(missing)}
	}
	return result, nil
}

// ExpandMap expands every value of a string map, such as a package
// environment block.
func (e *Engine) ExpandMap(m map[string]string, context map[string]interface{}) (map[string]string, error) {
	result := make(map[string]string, len(m))
	for _, key := range sortedKeys(m) {
		expanded, err := e.ReplaceString(m[key], context)
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		result[key] = expanded
	}
	return result, nil
}

// ExpandList expands every entry of a string list, such as a PATH block.
func (e *Engine) ExpandList(list []string, context map[string]interface{}) ([]string, error) {
	result := make([]string, len(list))
	for i, entry := range list {
		expanded, err := e.ReplaceString(entry, context)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = expanded
	}
	return result, nil
}

func stringify(v interface{}) string {
	switch r := v.(type) {
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	default:
		return fmt.Sprintf("%v", r)
	}
}

func (e *Engine) replaceMapTemplates(m map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))

	for key, value := range m {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		result[key] = replacedValue
	}

	return result, nil
}

func (e *Engine) replaceSliceTemplates(s []interface{}, context map[string]interface{}) ([]interface{}, error) {
	result := make([]interface{}, len(s))

	for i, value := range s {
		replacedValue, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = replacedValue
	}

	return result, nil
}

// ExtractVariables returns the sorted, distinct variable names used in value.
func (e *Engine) ExtractVariables(value interface{}) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)
	return sortedKeys(variables)
}

func (e *Engine) extractVariablesRecursive(value interface{}, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range e.templatePattern.FindAllStringSubmatch(v, -1) {
			variables[match[1]] = true
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case map[string]string:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []string:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}

// ValidateContext ensures all required variables are present in the context
func (e *Engine) ValidateContext(value interface{}, context map[string]interface{}) error {
	var missingVars []string
	for _, varName := range e.ExtractVariables(value) {
		if _, exists := context[varName]; !exists {
			missingVars = append(missingVars, varName)
		}
	}

	if len(missingVars) > 0 {
		return &MissingVariablesError{Names: missingVars}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
