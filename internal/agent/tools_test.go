package agent

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollo-chat/apollo/internal/toolcache"
)

func TestToolInfos_PrefixesAndSorts(t *testing.T) {
	snapshot := map[string][]toolcache.ToolDescriptor{
		"web-search": {{Name: "search", Description: "Search the web"}},
		"files":      {{Name: "read-file", Description: "Read a file"}},
	}

	infos := toolInfos(snapshot)
	require.Len(t, infos, 2)

	// Providers are visited in sorted order so the composed union is stable
	// across turns.
	assert.Equal(t, "files_read_file", infos[0].Name)
	assert.Equal(t, "web_search_search", infos[1].Name)
	assert.Equal(t, "Read a file", infos[0].Desc)
}

func TestToolInfos_Empty(t *testing.T) {
	assert.Empty(t, toolInfos(nil))
	assert.Empty(t, toolInfos(map[string][]toolcache.ToolDescriptor{}))
}

func TestSchemaToParams(t *testing.T) {
	schemaJSON := json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path"},
			"limit": {"type": "integer"},
			"recursive": {"type": "boolean"}
		},
		"required": ["path"]
	}`)

	params := schemaToParams(schemaJSON)
	require.Len(t, params, 3)

	require.Contains(t, params, "path")
	assert.Equal(t, schema.String, params["path"].Type)
	assert.Equal(t, "File path", params["path"].Desc)
	assert.True(t, params["path"].Required)

	assert.Equal(t, schema.Integer, params["limit"].Type)
	assert.False(t, params["limit"].Required)
	assert.Equal(t, schema.Boolean, params["recursive"].Type)
}

func TestSchemaToParams_Malformed(t *testing.T) {
	assert.Nil(t, schemaToParams(json.RawMessage(`{not json`)))
	assert.Nil(t, schemaToParams(nil))
}
