package entities

import (
	"fmt"

	"github.com/cedar-policy/cedar-go/types"
	"github.com/tidwall/gjson"
)

// ToValue exposes toValue's type-inferred coercion to callers outside this
// package (pkg/pdp's context builder, which has no resource
// entity type to key a schema lookup off of for engine-injected fields).
func ToValue(v any) (types.Value, error) { return toValue(v) }

// toValue coerces a decoded-JSON Go value (as produced by encoding/json or
// a JWT claim map) into a Cedar value, inferring the Cedar type from the
// Go type. Used for token-entity attributes, which the schema only
// loosely constrains.
func toValue(v any) (types.Value, error) {
	switch vv := v.(type) {
	case nil:
		return types.String(""), nil
	case string:
		return types.String(vv), nil
	case bool:
		return types.Boolean(vv), nil
	case float64:
		return types.Long(int64(vv)), nil
	case int:
		return types.Long(int64(vv)), nil
	case int64:
		return types.Long(vv), nil
	case []any:
		elems := make([]types.Value, 0, len(vv))
		for _, e := range vv {
			cv, err := toValue(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, cv)
		}
		return types.NewSet(elems), nil
	case map[string]any:
		rm := types.RecordMap{}
		for k, e := range vv {
			cv, err := toValue(e)
			if err != nil {
				return nil, err
			}
			rm[types.String(k)] = cv
		}
		return types.NewRecord(rm), nil
	default:
		return nil, fmt.Errorf("unsupported claim value type %T", v)
	}
}

// schemaAttrType looks up the declared Cedar type for entityType.attrName in
// schemaJSON ("" denotes the unnamed/default namespace, matching the
// native Cedar JSON schema format).
func schemaAttrType(schemaJSON []byte, namespace, entityType, attrName string) (string, bool) {
	path := fmt.Sprintf(`%s.entityTypes.%s.shape.attributes.%s.type`, namespace, entityType, attrName)
	res := gjson.GetBytes(schemaJSON, path)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// schemaAttrEntityName looks up the "name" field the Cedar JSON schema
// format puts alongside "type": "Entity" on an attribute, naming the
// entity type a reference attribute points at (e.g. an Issue.owner
// attribute declared {"type": "Entity", "name": "User"}).
func schemaAttrEntityName(schemaJSON []byte, namespace, entityType, attrName string) (string, bool) {
	path := fmt.Sprintf(`%s.entityTypes.%s.shape.attributes.%s.name`, namespace, entityType, attrName)
	res := gjson.GetBytes(schemaJSON, path)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// coerceResourceAttr coerces v into the Cedar type declared by the schema
// for resourceType.attrName, falling back to inference when the schema
// doesn't declare the attribute (schemas may be intentionally permissive).
func coerceResourceAttr(schemaJSON []byte, namespace, resourceType, attrName string, v any) (types.Value, error) {
	declared, ok := schemaAttrType(schemaJSON, namespace, resourceType, attrName)
	if !ok {
		return toValue(v)
	}

	switch declared {
	case "String", "Entity":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected %s, got %T", attrName, declared, v)
		}
		if declared == "Entity" {
			refType := resourceType
			if name, ok := schemaAttrEntityName(schemaJSON, namespace, resourceType, attrName); ok {
				refType = name
			}
			return types.NewEntityUID(types.EntityType(refType), types.String(s)), nil
		}
		return types.String(s), nil
	case "Long":
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Long, got %T", attrName, v)
		}
		return types.Long(int64(f)), nil
	case "Boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Boolean, got %T", attrName, v)
		}
		return types.Boolean(b), nil
	case "Set":
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Set, got %T", attrName, v)
		}
		return toValue(arr)
	case "Record":
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Record, got %T", attrName, v)
		}
		return toValue(m)
	default:
		return toValue(v)
	}
}
