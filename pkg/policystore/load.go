package policystore

import "encoding/json"

// LoadFromBytes auto-detects which wire dialect data uses and parses it.
// The Agama dialect is recognized by the presence of a top-level
// policy_stores object; anything else is parsed as the native dialect.
func LoadFromBytes(data []byte) (*PolicyStore, error) {
	var probe struct {
		PolicyStores json.RawMessage `json:"policy_stores"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.PolicyStores != nil {
		return ParseAgama(data)
	}
	return ParseNative(data)
}
