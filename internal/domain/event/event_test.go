package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range All {
		assert.True(t, typ.IsValid(), typ.String())
	}
	assert.False(t, Type("instance.approved").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "transition.completed", TypeTransitionCompleted.String())
	assert.Equal(t, "permission.denied", TypePermissionDenied.String())
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeTransitionCompleted, "inst-1", "user-1", nil)

	require.NotNil(t, evt.Payload)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "inst-1", evt.InstanceID)
	assert.Equal(t, "user-1", evt.ActorID)
	assert.False(t, evt.Timestamp.IsZero())

	other := NewEvent(TypeTransitionCompleted, "inst-1", "user-1", nil)
	assert.NotEqual(t, evt.ID, other.ID)
}

func TestEvent_WithPayloadDoesNotMutate(t *testing.T) {
	evt := NewEvent(TypeStatusChanged, "inst-1", "user-1", map[string]interface{}{KeyStatus: "paused"})
	next := evt.WithPayload(KeyPreviousStatus, "active")

	assert.Equal(t, evt.ID, next.ID)
	assert.Equal(t, "active", next.GetPayloadString(KeyPreviousStatus))
	assert.Empty(t, evt.GetPayloadString(KeyPreviousStatus))
	assert.Equal(t, "paused", next.GetPayloadString(KeyStatus))
}

func TestEvent_GetPayloadStrings(t *testing.T) {
	evt := NewEvent(TypePermissionDenied, "inst-1", "user-1", map[string]interface{}{
		KeyReasons: []string{"a", "b"},
		"decoded":  []interface{}{"c", 1, "d"},
	})

	assert.Equal(t, []string{"a", "b"}, evt.GetPayloadStrings(KeyReasons))
	assert.Equal(t, []string{"c", "d"}, evt.GetPayloadStrings("decoded"))
	assert.Nil(t, evt.GetPayloadStrings("missing"))
}
