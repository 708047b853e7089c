package resources

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beyondbetter/mcphub/internal/domain"
)

// Servers disagree on payload casing: some emit snake_case keys, others
// camelCase. Everything crossing into domain types goes through the helpers
// here, so the rest of the codebase only ever sees canonical envelopes.

// decodeToolPayload extracts the first text content of a tool result and
// decodes it as a JSON object. A nil map with nil error means the tool
// returned no payload at all.
func decodeToolPayload(result *mcp.CallToolResult) (map[string]any, error) {
	if result == nil {
		return nil, nil
	}

	for _, content := range result.Content {
		text, ok := mcp.AsTextContent(content)
		if !ok {
			continue
		}

		trimmed := strings.TrimSpace(text.Text)
		if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return nil, fmt.Errorf("malformed tool payload: %w", err)
		}
		return payload, nil
	}

	return nil, nil
}

// toolErrorText flattens the text content of a failed tool result.
func toolErrorText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "; ")
}

func pickString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok {
			return v
		}
	}
	return ""
}

func pickBool(m map[string]any, fallback bool, keys ...string) bool {
	for _, key := range keys {
		if v, ok := m[key].(bool); ok {
			return v
		}
	}
	return fallback
}

func pickInt64(m map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return int64(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
		}
	}
	return 0
}

func pickFloat(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := m[key].(float64); ok {
			return v
		}
	}
	return 0
}

func pickMap(m map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if v, ok := m[key].(map[string]any); ok {
			return v
		}
	}
	return nil
}

func pickSlice(m map[string]any, keys ...string) []any {
	for _, key := range keys {
		if v, ok := m[key].([]any); ok {
			return v
		}
	}
	return nil
}

// metadataFromPayload maps a metadata object, tolerating both casings.
func metadataFromPayload(m map[string]any) domain.ResourceMetadata {
	meta := domain.ResourceMetadata{
		URI:         pickString(m, "uri", "URI"),
		Name:        pickString(m, "name"),
		Type:        pickString(m, "type"),
		ContentType: pickString(m, "content_type", "contentType", "mime_type", "mimeType"),
		Size:        pickInt64(m, "size", "byte_size", "byteSize"),
		Description: pickString(m, "description"),
	}

	if raw := pickString(m, "last_modified", "lastModified", "modified"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			meta.LastModified = ts
		}
	}

	if meta.Type == "" {
		meta.Type = resourceType(meta.URI)
	}

	return meta
}

// metadataFromResource maps a native MCP resource listing entry.
func metadataFromResource(r mcp.Resource) domain.ResourceMetadata {
	return domain.ResourceMetadata{
		URI:         r.URI,
		Name:        r.Name,
		Type:        resourceType(r.URI),
		ContentType: r.MIMEType,
		Description: r.Description,
	}
}

func resourceType(uri string) string {
	if strings.HasSuffix(uri, "/") {
		return "directory"
	}
	return "file"
}

func writeResultFromPayload(payload map[string]any, fallbackURI string) domain.ResourceWriteResult {
	result := domain.ResourceWriteResult{Success: true}
	if payload == nil {
		result.Metadata = domain.ResourceMetadata{URI: fallbackURI, Type: resourceType(fallbackURI)}
		return result
	}

	result.Success = pickBool(payload, true, "success")
	if meta := pickMap(payload, "metadata"); meta != nil {
		result.Metadata = metadataFromPayload(meta)
	} else {
		result.Metadata = metadataFromPayload(payload)
	}
	if result.Metadata.URI == "" {
		result.Metadata.URI = fallbackURI
		result.Metadata.Type = resourceType(fallbackURI)
	}

	return result
}

func moveResultFromPayload(payload map[string]any, source string, destination string) domain.ResourceMoveResult {
	result := domain.ResourceMoveResult{
		Success:        true,
		SourceURI:      source,
		DestinationURI: destination,
	}
	if payload == nil {
		result.Metadata = domain.ResourceMetadata{URI: destination, Type: resourceType(destination)}
		return result
	}

	result.Success = pickBool(payload, true, "success")
	if v := pickString(payload, "source_uri", "sourceUri", "source"); v != "" {
		result.SourceURI = v
	}
	if v := pickString(payload, "destination_uri", "destinationUri", "destination"); v != "" {
		result.DestinationURI = v
	}
	if meta := pickMap(payload, "metadata"); meta != nil {
		result.Metadata = metadataFromPayload(meta)
	} else {
		result.Metadata = domain.ResourceMetadata{URI: result.DestinationURI, Type: resourceType(result.DestinationURI)}
	}

	return result
}

func deleteResultFromPayload(payload map[string]any, fallbackURI string) domain.ResourceDeleteResult {
	result := domain.ResourceDeleteResult{Success: true, URI: fallbackURI}
	if payload == nil {
		return result
	}

	result.Success = pickBool(payload, true, "success")
	if v := pickString(payload, "uri", "URI", "path"); v != "" {
		result.URI = v
	}

	return result
}

func searchResultFromPayload(payload map[string]any) domain.ResourceSearchResult {
	var result domain.ResourceSearchResult
	if payload == nil {
		return result
	}

	for _, raw := range pickSlice(payload, "matches", "results", "resources") {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		match := domain.ResourceMatch{
			Snippet: pickString(entry, "snippet", "excerpt"),
			Score:   pickFloat(entry, "score", "relevance"),
		}
		if meta := pickMap(entry, "metadata", "resource"); meta != nil {
			match.Metadata = metadataFromPayload(meta)
		} else {
			match.Metadata = metadataFromPayload(entry)
		}

		result.Matches = append(result.Matches, match)
	}

	return result
}
