package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextBackendDecodeVerbatim(t *testing.T) {
	b := textBackend{}
	for _, line := range []string{"OK", "", "  indented", `{"type":"result"}`, "not json"} {
		ev, ok := b.Decode(line)
		require.True(t, ok)
		assert.Equal(t, EventText, ev.Kind)
		assert.Equal(t, line, ev.Text)
	}
}

func TestJSONBackendDecode(t *testing.T) {
	b := jsonBackend{}

	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, ev Event)
	}{
		{
			name: "assistant message",
			line: `{"type":"message","role":"assistant","content":"hi"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, EventText, ev.Kind)
				assert.Equal(t, "hi", ev.Text)
				assert.False(t, ev.Delta)
			},
		},
		{
			name: "delta message",
			line: `{"type":"message","role":"assistant","content":"chunk","delta":true}`,
			check: func(t *testing.T, ev Event) {
				assert.True(t, ev.Delta)
			},
		},
		{
			name: "tool use is reported canonically",
			line: `{"type":"tool_use","name":"run_shell_command","input":{"command":"ls"},"id":"t1"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, EventToolUse, ev.Kind)
				assert.Equal(t, "Bash", ev.ToolName)
				assert.Equal(t, "ls", ev.ToolInput["command"])
				assert.Equal(t, "t1", ev.ToolUseID)
			},
		},
		{
			name: "tool use with alternate field names",
			line: `{"type":"tool_use","tool_name":"read_file","parameters":{"path":"a.go"},"tool_id":"t2"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, "Read", ev.ToolName)
				assert.Equal(t, "a.go", ev.ToolInput["path"])
				assert.Equal(t, "t2", ev.ToolUseID)
			},
		},
		{
			name: "unknown tool keeps backend name",
			line: `{"type":"tool_use","name":"mcp_thing","input":{}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, "mcp_thing", ev.ToolName)
			},
		},
		{
			name: "tool result",
			line: `{"type":"tool_result","tool_use_id":"t1","content":"file.go"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, EventToolResult, ev.Kind)
				assert.Equal(t, "t1", ev.ToolUseID)
				assert.Equal(t, "file.go", ev.Content)
			},
		},
		{
			name: "tool result with structured output",
			line: `{"type":"tool_result","tool_id":"t3","output":{"lines": 3}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, `{"lines":3}`, ev.Content)
			},
		},
		{
			name: "result",
			line: `{"type":"result","status":"success","stats":{"tokens":5}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, EventResult, ev.Kind)
				assert.Equal(t, "success", ev.Status)
				assert.Equal(t, float64(5), ev.Stats["tokens"])
			},
		},
		{
			name: "error result",
			line: `{"type":"result","status":"error","error":{"type":"api","message":"quota"}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, "error", ev.Status)
				assert.Equal(t, "quota", ev.Text)
			},
		},
		{
			name: "init",
			line: `{"type":"init","session_id":"s-1","model":"gemini-2.5-pro"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, EventInit, ev.Kind)
				assert.Equal(t, "s-1", ev.SessionID)
				assert.Equal(t, "gemini-2.5-pro", ev.Model)
			},
		},
		{
			name: "in-band error",
			line: `{"type":"error","severity":"warning","message":"loop detected"}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, EventError, ev.Kind)
				assert.Equal(t, "loop detected", ev.Text)
			},
		},
		{
			name: "unknown type",
			line: `{"type":"telemetry","x":1}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, EventUnknown, ev.Kind)
				assert.Equal(t, "telemetry", ev.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := b.Decode(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.line, ev.Raw)
			tt.check(t, ev)
		})
	}
}

func TestJSONBackendSkipsNonEvents(t *testing.T) {
	b := jsonBackend{}
	for _, line := range []string{
		"",
		"   ",
		`{"type":"message","role":"user","content":"the prompt"}`,
		`{"type":"message","role":"assistant"}`,
	} {
		_, ok := b.Decode(line)
		assert.False(t, ok, line)
	}
}

func TestJSONBackendMalformed(t *testing.T) {
	b := jsonBackend{}
	for _, line := range []string{"not json", `{"type":"message"`, `[1,2]`, `"str"`, `{"role":"assistant"}`, `null`} {
		ev, ok := b.Decode(line)
		require.True(t, ok, line)
		assert.Equal(t, EventMalformed, ev.Kind, line)
		assert.Equal(t, line, ev.Raw)
		assert.Error(t, ev.Err)
	}
}

func TestJSONBackendDecodeFinal(t *testing.T) {
	b := jsonBackend{}
	events, err := b.DecodeFinal([]byte(`{"response":"done","stats":{"tokens":9},"session_id":"abc"}` + "\n"))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventInit, events[0].Kind)
	assert.Equal(t, "done", events[1].Text)
	assert.Equal(t, "success", events[2].Status)
	assert.Equal(t, float64(9), events[2].Stats["tokens"])

	events, err = b.DecodeFinal([]byte(`{"error":{"message":"bad key"}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Status)
	assert.Equal(t, "bad key", events[0].Text)

	_, err = b.DecodeFinal([]byte("oops"))
	var chunkErr *MalformedStreamChunkError
	require.True(t, errors.As(err, &chunkErr))
	assert.Equal(t, "oops", chunkErr.Raw)

	_, err = b.DecodeFinal(nil)
	assert.ErrorAs(t, err, &chunkErr)
}
