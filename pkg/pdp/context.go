package pdp

import (
	"fmt"
	"strings"

	"github.com/cedar-policy/cedar-go/types"
	"github.com/tidwall/gjson"

	"github.com/cedar-pdp/pdp/pkg/entities"
)

// parseActionUID splits a Cedar entity-uid string of the form
// `Ns::Action::"Id"` into its entity type ("Ns::Action"), namespace ("Ns",
// "" for the unnamed namespace), and bare action id ("Id").
func parseActionUID(uid string) (entityType, namespace, actionID string, err error) {
	idx := strings.Index(uid, `::"`)
	if idx < 0 || !strings.HasSuffix(uid, `"`) {
		return "", "", "", fmt.Errorf("malformed action entity uid %q", uid)
	}
	entityType = uid[:idx]
	actionID = uid[idx+3 : len(uid)-1]
	if entityType == "" || actionID == "" {
		return "", "", "", fmt.Errorf("malformed action entity uid %q", uid)
	}
	if i := strings.LastIndex(entityType, "::"); i >= 0 {
		namespace = entityType[:i]
	}
	return entityType, namespace, actionID, nil
}

// buildContext merges request-supplied context with engine-injected fields
// and validates/coerces the result against the schema's declared context
// type for (namespace, actionID). An action the schema declares no
// context.attributes for passes its fields through type-inferred,
// mirroring coerceResourceAttr's permissive fallback for schemas that
// don't constrain every shape.
func buildContext(schemaJSON []byte, namespace, actionID string, data, injected map[string]any) (types.Record, error) {
	merged := make(map[string]any, len(data)+len(injected))
	for k, v := range data {
		merged[k] = v
	}
	for k, v := range injected {
		merged[k] = v
	}

	path := fmt.Sprintf(`%s.actions.%s.appliesTo.context.attributes`, namespace, actionID)
	declared := gjson.GetBytes(schemaJSON, path)

	rm := types.RecordMap{}
	var problems []string

	if !declared.Exists() {
		for k, v := range merged {
			cv, err := entities.ToValue(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", k, err))
				continue
			}
			rm[types.String(k)] = cv
		}
		if len(problems) > 0 {
			return types.Record{}, fmt.Errorf("context: %s", strings.Join(problems, "; "))
		}
		return types.NewRecord(rm), nil
	}

	declared.ForEach(func(key, val gjson.Result) bool {
		name := key.String()
		required := true
		if r := val.Get("required"); r.Exists() {
			required = r.Bool()
		}
		v, ok := merged[name]
		if !ok {
			if required {
				problems = append(problems, name+": missing")
			}
			return true
		}
		cv, err := coerceContextAttr(val.Get("type").String(), v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			return true
		}
		rm[types.String(name)] = cv
		return true
	})

	if len(problems) > 0 {
		return types.Record{}, fmt.Errorf("context: %s", strings.Join(problems, "; "))
	}
	return types.NewRecord(rm), nil
}

// coerceContextAttr coerces v into declaredType, falling back to
// type-inferred coercion for shapes this switch doesn't special-case
// (Set/Record/Entity), identical in spirit to coerceResourceAttr.
func coerceContextAttr(declaredType string, v any) (types.Value, error) {
	switch declaredType {
	case "String":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected String, got %T", v)
		}
		return types.String(s), nil
	case "Long":
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected Long, got %T", v)
		}
		return types.Long(int64(f)), nil
	case "Boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected Boolean, got %T", v)
		}
		return types.Boolean(b), nil
	default:
		return entities.ToValue(v)
	}
}
