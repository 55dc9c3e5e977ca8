package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Retrieval scopes points with flat field conditions: a bare scalar for
// equality, or an operator object with $eq / $in. Richer boolean grammar is
// rejected up front rather than mistranslated into a looser query.

const (
	filterOpEq = "$eq"
	filterOpIn = "$in"
)

// filterConditions translates a caller filter map into qdrant "must"
// conditions. Keys and operators are walked in sorted order so request
// bodies are deterministic.
func filterConditions(filter map[string]any) ([]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conditions := make([]any, 0, len(filter))
	for _, field := range fields {
		key := strings.TrimSpace(field)
		if key == "" {
			continue
		}
		if strings.HasPrefix(key, "$") {
			return nil, opErr(
				"filter_translate",
				OperationErrorUnsupportedFilter,
				fmt.Sprintf("boolean operator %q is not supported; use flat field conditions", key),
				nil,
			)
		}
		conds, err := fieldConditions(key, filter[field])
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, conds...)
	}
	return conditions, nil
}

func fieldConditions(field string, value any) ([]any, error) {
	ops, isOpObject := value.(map[string]any)
	if !isOpObject {
		scalar, ok := scalarValue(value)
		if !ok {
			return nil, opErr(
				"filter_translate",
				OperationErrorValidation,
				fmt.Sprintf("field %q expects a scalar or an operator object", field),
				nil,
			)
		}
		return []any{matchCondition(field, scalar)}, nil
	}
	if len(ops) == 0 {
		return nil, opErr(
			"filter_translate",
			OperationErrorValidation,
			fmt.Sprintf("field %q has an empty operator object", field),
			nil,
		)
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]any, 0, len(ops))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case filterOpEq:
			scalar, ok := scalarValue(ops[name])
			if !ok {
				return nil, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("%s on field %q expects a scalar", filterOpEq, field),
					nil,
				)
			}
			out = append(out, matchCondition(field, scalar))
		case filterOpIn:
			values, err := scalarList(ops[name])
			if err != nil {
				return nil, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("%s on field %q expects a scalar array", filterOpIn, field),
					err,
				)
			}
			if len(values) == 0 {
				return nil, opErr(
					"filter_translate",
					OperationErrorValidation,
					fmt.Sprintf("%s on field %q cannot be empty", filterOpIn, field),
					nil,
				)
			}
			out = append(out, map[string]any{
				"key":   field,
				"match": map[string]any{"any": values},
			})
		default:
			return nil, opErr(
				"filter_translate",
				OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported operator %q on field %q", name, field),
				nil,
			)
		}
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func scalarList(value any) ([]any, error) {
	switch typed := value.(type) {
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := scalarValue(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar element, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

func scalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case bool:
		return typed, true
	case int:
		return typed, true
	case int32:
		return int(typed), true
	case int64:
		return typed, true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}
