package qdrant

import (
	"testing"
)

func findConditionByKey(t *testing.T, conditions []any, key string) map[string]any {
	t.Helper()
	for _, raw := range conditions {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if cond["key"] == key {
			return cond
		}
	}
	t.Fatalf("condition with key=%q not found in %v", key, conditions)
	return nil
}

func TestFilterConditionsScalarEquality(t *testing.T) {
	out, err := filterConditions(map[string]any{
		"owner_user_id": "user-1",
	})
	if err != nil {
		t.Fatalf("filterConditions: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("conditions: want=1 got=%d", len(out))
	}
	cond := findConditionByKey(t, out, "owner_user_id")
	match := cond["match"].(map[string]any)
	if match["value"] != "user-1" {
		t.Fatalf("match value: want=%q got=%v", "user-1", match["value"])
	}
}

func TestFilterConditionsInOperator(t *testing.T) {
	out, err := filterConditions(map[string]any{
		"document_id": map[string]any{"$in": []string{"d1", "d2"}},
		"status":      map[string]any{"$eq": "ready"},
	})
	if err != nil {
		t.Fatalf("filterConditions: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("conditions: want=2 got=%d", len(out))
	}

	inCond := findConditionByKey(t, out, "document_id")
	anyVals := inCond["match"].(map[string]any)["any"].([]any)
	if len(anyVals) != 2 || anyVals[0] != "d1" || anyVals[1] != "d2" {
		t.Fatalf("in values: got=%v", anyVals)
	}

	eqCond := findConditionByKey(t, out, "status")
	if eqCond["match"].(map[string]any)["value"] != "ready" {
		t.Fatalf("eq value: got=%v", eqCond["match"])
	}
}

func TestFilterConditionsRejectsBooleanOperators(t *testing.T) {
	for _, op := range []string{"$and", "$or", "$not"} {
		_, err := filterConditions(map[string]any{
			op: []any{map[string]any{"status": "ready"}},
		})
		if !IsOperationCode(err, OperationErrorUnsupportedFilter) {
			t.Fatalf("%s: want unsupported_filter, got %v", op, err)
		}
	}
}

func TestFilterConditionsRejectsUnknownFieldOperator(t *testing.T) {
	for _, op := range []string{"$ne", "$gte"} {
		_, err := filterConditions(map[string]any{
			"score": map[string]any{op: 0.5},
		})
		if !IsOperationCode(err, OperationErrorUnsupportedFilter) {
			t.Fatalf("%s: want unsupported_filter, got %v", op, err)
		}
	}
}

func TestFilterConditionsEmptyInRejected(t *testing.T) {
	_, err := filterConditions(map[string]any{
		"document_id": map[string]any{"$in": []any{}},
	})
	if !IsOperationCode(err, OperationErrorValidation) {
		t.Fatalf("want validation_failed, got %v", err)
	}
}

func TestFilterConditionsNonScalarRejected(t *testing.T) {
	_, err := filterConditions(map[string]any{
		"metadata": []any{"not", "a", "scalar"},
	})
	if !IsOperationCode(err, OperationErrorValidation) {
		t.Fatalf("want validation_failed, got %v", err)
	}

	_, err = filterConditions(map[string]any{
		"document_id": map[string]any{},
	})
	if !IsOperationCode(err, OperationErrorValidation) {
		t.Fatalf("empty operator object: want validation_failed, got %v", err)
	}
}
