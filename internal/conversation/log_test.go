package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendOrdering(t *testing.T) {
	log := NewLog()

	log.AppendSystem("framing")
	log.AppendUser("objective", 0)
	log.AppendToolResult("c1", "search", `{"success":true}`, false, 1)
	log.AppendAssistant("done", 1)

	entries := log.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, RoleSystem, entries[0].Role)
	assert.Equal(t, RoleUser, entries[1].Role)
	assert.Equal(t, RoleTool, entries[2].Role)
	assert.Equal(t, RoleAssistant, entries[3].Role)
	assert.Equal(t, 4, log.Len())
}

func TestLog_AppendToolResultFields(t *testing.T) {
	log := NewLog()
	log.AppendToolResult("call-1", "web_search", `{"success":false,"error":"boom"}`, true, 2)

	entries := log.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "call-1", e.ToolCallID)
	assert.Equal(t, "web_search", e.ToolName)
	assert.True(t, e.IsError, "failed results must be marked")
	assert.Equal(t, 2, e.Iteration)
	assert.False(t, e.Timestamp.IsZero())
}

func TestLog_EntriesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.AppendUser("objective", 0)

	entries := log.Entries()
	entries[0].Content = "mutated"

	assert.Equal(t, "objective", log.Entries()[0].Content)
}

func TestLog_Compact(t *testing.T) {
	log := NewLog()
	log.AppendSystem("framing")
	log.AppendUser("objective", 0)

	long := strings.Repeat("x", 500)
	log.AppendToolResult("c1", "search", long, false, 1)
	log.AppendToolResult("c2", "search", long, false, 4)

	compacted := log.Compact(5, 2, 100)
	assert.Equal(t, 1, compacted, "only the entry older than the window is compacted")

	entries := log.Entries()
	assert.Less(t, len(entries[2].Content), 500, "old tool entry should be summarized")
	assert.Contains(t, entries[2].Content, "omitted")
	assert.Equal(t, long, entries[3].Content, "recent tool entry keeps full content")

	// Non-tool entries are never touched.
	assert.Equal(t, "framing", entries[0].Content)
	assert.Equal(t, "objective", entries[1].Content)
}

func TestLog_CompactIdempotent(t *testing.T) {
	log := NewLog()
	log.AppendToolResult("c1", "search", strings.Repeat("x", 500), false, 1)

	first := log.Compact(10, 2, 100)
	assert.Equal(t, 1, first)

	second := log.Compact(10, 2, 100)
	assert.Equal(t, 0, second, "already compacted entries are skipped")
}

func TestLog_CompactShortEntriesUntouched(t *testing.T) {
	log := NewLog()
	log.AppendToolResult("c1", "search", "short", false, 1)

	compacted := log.Compact(10, 2, 100)
	assert.Equal(t, 0, compacted)
	assert.Equal(t, "short", log.Entries()[0].Content)
}

func TestLog_CompactDisabled(t *testing.T) {
	log := NewLog()
	log.AppendToolResult("c1", "search", strings.Repeat("x", 500), false, 1)

	assert.Equal(t, 0, log.Compact(10, 2, 0))
}
