package pdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionUID(t *testing.T) {
	cases := []struct {
		uid        string
		entityType string
		namespace  string
		actionID   string
	}{
		{`Action::"Read"`, "Action", "", "Read"},
		{`Ns::Action::"Update"`, "Ns::Action", "Ns", "Update"},
		{`Ns::Sub::Action::"Delete"`, "Ns::Sub::Action", "Ns::Sub", "Delete"},
	}
	for _, c := range cases {
		entityType, namespace, actionID, err := parseActionUID(c.uid)
		require.NoError(t, err, c.uid)
		assert.Equal(t, c.entityType, entityType, c.uid)
		assert.Equal(t, c.namespace, namespace, c.uid)
		assert.Equal(t, c.actionID, actionID, c.uid)
	}
}

func TestParseActionUID_Malformed(t *testing.T) {
	for _, uid := range []string{"", "Action", `Action::"Read`, `::"Read"`, `Action::""`} {
		_, _, _, err := parseActionUID(uid)
		assert.Error(t, err, uid)
	}
}

func TestBuildContext_MissingRequiredFieldFails(t *testing.T) {
	_, err := buildContext([]byte(testSchemaJSON), "", "Update", map[string]any{}, nil)
	require.Error(t, err)
}

func TestBuildContext_CoercesDeclaredTypes(t *testing.T) {
	rec, err := buildContext([]byte(testSchemaJSON), "", "Update", map[string]any{"thingz": "hello"}, nil)
	require.NoError(t, err)
	v, ok := rec.Get("thingz")
	require.True(t, ok)
	assert.Equal(t, `hello`, v.String())
}

func TestBuildContext_UndeclaredActionPassesThroughTypeInferred(t *testing.T) {
	rec, err := buildContext([]byte(testSchemaJSON), "", "Nonexistent", map[string]any{"free": "form"}, nil)
	require.NoError(t, err)
	_, ok := rec.Get("free")
	assert.True(t, ok)
}

func TestBuildContext_InjectedFieldsOverrideData(t *testing.T) {
	rec, err := buildContext([]byte(testSchemaJSON), "", "Update",
		map[string]any{"thingz": "from-data"},
		map[string]any{"thingz": "from-injected"})
	require.NoError(t, err)
	v, ok := rec.Get("thingz")
	require.True(t, ok)
	assert.Equal(t, `from-injected`, v.String())
}
