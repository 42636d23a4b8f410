package pdp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceInput_UnmarshalFlattensIDAndType(t *testing.T) {
	var r ResourceInput
	err := json.Unmarshal([]byte(`{"id":"R1","type":"Issue","priority":3,"title":"fix bug"}`), &r)
	require.NoError(t, err)
	assert.Equal(t, "R1", r.ID)
	assert.Equal(t, "Issue", r.Type)
	assert.Equal(t, float64(3), r.Attributes["priority"])
	assert.Equal(t, "fix bug", r.Attributes["title"])
	_, hasID := r.Attributes["id"]
	assert.False(t, hasID)
}

func TestResourceInput_MarshalReflattensAttributes(t *testing.T) {
	r := ResourceInput{ID: "R1", Type: "Issue", Attributes: map[string]any{"priority": float64(3)}}
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "R1", out["id"])
	assert.Equal(t, "Issue", out["type"])
	assert.Equal(t, float64(3), out["priority"])
}

func TestResourceInput_RoundTrip(t *testing.T) {
	orig := ResourceInput{ID: "R1", Type: "Issue", Attributes: map[string]any{"priority": float64(2)}}
	b, err := json.Marshal(orig)
	require.NoError(t, err)

	var roundTripped ResourceInput
	require.NoError(t, json.Unmarshal(b, &roundTripped))
	assert.Equal(t, orig, roundTripped)
}

func TestRequest_UnmarshalsNestedResource(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{
		"access_token": "tok",
		"action": "Action::\"Read\"",
		"context": {"thingz": "v"},
		"resource": {"id": "R1", "type": "Issue", "priority": 1}
	}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "tok", req.AccessToken)
	assert.Equal(t, `Action::"Read"`, req.Action)
	assert.Equal(t, "R1", req.Resource.ID)
	assert.Equal(t, float64(1), req.Resource.Attributes["priority"])
}
