package agent

import (
	"encoding/json"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/apollo-chat/apollo/internal/mcp"
	"github.com/apollo-chat/apollo/internal/toolcache"
)

// toolInfos converts a tool cache snapshot into Eino tool definitions. Tool
// names are prefixed with their provider name so invocations route back to
// the owning connection; composition across providers is a plain union.
func toolInfos(snapshot map[string][]toolcache.ToolDescriptor) []*schema.ToolInfo {
	providers := make([]string, 0, len(snapshot))
	for name := range snapshot {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	var infos []*schema.ToolInfo
	for _, providerName := range providers {
		for _, tool := range snapshot[providerName] {
			infos = append(infos, &schema.ToolInfo{
				Name:        mcp.SanitizeName(providerName) + "_" + mcp.SanitizeName(tool.Name),
				Desc:        tool.Description,
				ParamsOneOf: schema.NewParamsOneOfByParams(schemaToParams(tool.InputSchema)),
			})
		}
	}
	return infos
}

// schemaToParams converts a JSON Schema object into Eino parameter infos.
func schemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var parsed struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &parsed); err != nil {
		return nil
	}

	required := make(map[string]bool, len(parsed.Required))
	for _, r := range parsed.Required {
		required[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(parsed.Properties))
	for name, prop := range parsed.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: required[name],
		}
	}
	return params
}
