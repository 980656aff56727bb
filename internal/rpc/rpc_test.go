package rpc

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/chirino/agent-memory/internal/engine"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return New(engine.New(t.TempDir()))
}

func runLines(t *testing.T, d *Dispatcher, lines ...string) []map[string]interface{} {
	t.Helper()
	var out bytes.Buffer
	err := d.Run(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, err)

	var responses []map[string]interface{}
	scanner := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	for _, line := range scanner {
		if len(line) == 0 {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &m))
		responses = append(responses, m)
	}
	return responses
}

func TestToolsListIncludesKeywordTools(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Len(t, responses, 1)

	result := responses[0]["result"].(map[string]interface{})
	tools := result["tools"].([]interface{})

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	require.Contains(t, names, "keywords_list")
	require.Contains(t, names, "keywords_list_global")
	require.Contains(t, names, "now")
	require.Contains(t, names, "remember")
	require.Contains(t, names, "recall")
}

func TestInitializeNegotiatesKnownVersion(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]interface{})
	require.Equal(t, "2024-11-05", result["protocolVersion"])
}

func TestInitializeFallsBackOnUnknownVersion(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)
	require.Len(t, responses, 1)
	result := responses[0]["result"].(map[string]interface{})
	require.Equal(t, ProtocolVersion, result["protocolVersion"])
}

func TestInitializedProducesNoResponse(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","method":"initialized"}`)
	require.Empty(t, responses)
}

func TestToolsCallNowReturnsTimeFields(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"now","arguments":{}}}`)
	require.Len(t, responses, 1)

	result := responses[0]["result"].(map[string]interface{})
	data := result["data"].(map[string]interface{})
	require.Contains(t, data, "utc_rfc3339")
	require.Contains(t, data, "utc_ts")
	require.Contains(t, data, "local_rfc3339")
	require.Contains(t, data, "local_offset_seconds")
}

func TestToolsCallKeywordsListWorks(t *testing.T) {
	d := newTestDispatcher(t)
	remember := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"remember","arguments":{"namespace":"u1/p1","slice":"s","diary":"d","keywords":["alpha","beta"]}}}`
	list := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"keywords_list","arguments":{"namespace":"u1/p1"}}}`

	responses := runLines(t, d, remember, list)
	require.Len(t, responses, 2)

	listResult := responses[1]["result"].(map[string]interface{})
	data := listResult["data"].(map[string]interface{})
	require.EqualValues(t, 2, data["total"])
}

func TestUnknownTopLevelMethodReturnsMethodNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","id":1,"method":"bogus"}`)
	require.Len(t, responses, 1)

	errObj := responses[0]["error"].(map[string]interface{})
	require.EqualValues(t, -32601, errObj["code"])
	require.Equal(t, "method not found: bogus", errObj["message"])
}

func TestUnknownToolNameReturnsUnknownTool(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"bogus","arguments":{}}}`)
	require.Len(t, responses, 1)

	errObj := responses[0]["error"].(map[string]interface{})
	require.EqualValues(t, -32601, errObj["code"])
	require.Equal(t, "unknown tool: bogus", errObj["message"])
}

func TestNotificationOnUnknownMethodProducesNoResponse(t *testing.T) {
	d := newTestDispatcher(t)
	responses := runLines(t, d, `{"jsonrpc":"2.0","method":"bogus"}`)
	require.Empty(t, responses)
}

func TestBlankLinesAreSkipped(t *testing.T) {
	d := newTestDispatcher(t)
	var out bytes.Buffer
	err := d.Run(strings.NewReader("\n\n"+fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)+"\n"), &out)
	require.NoError(t, err)
	require.NotEmpty(t, out.String())
}
