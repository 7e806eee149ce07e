package models

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gormTag(t *testing.T, model interface{}, field string) string {
	t.Helper()
	f, ok := reflect.TypeOf(model).FieldByName(field)
	require.True(t, ok, "field %s not found", field)
	return f.Tag.Get("gorm")
}

// Constraint tags only take effect on the relation field; on the column
// field GORM silently ignores them and migrates the default NO ACTION.
func TestDeleteBehaviorDeclaredOnRelations(t *testing.T) {
	assert.Contains(t, gormTag(t, AgentAction{}, "Transcription"), "OnDelete:SET NULL")
	assert.NotContains(t, gormTag(t, AgentAction{}, "TranscriptionID"), "OnDelete")

	assert.Contains(t, gormTag(t, AgentAction{}, "Agent"), "OnDelete:RESTRICT")

	assert.Contains(t, gormTag(t, AssistantRun{}, "Transcription"), "OnDelete:CASCADE")
	assert.NotContains(t, gormTag(t, AssistantRun{}, "TranscriptionID"), "OnDelete")
}
