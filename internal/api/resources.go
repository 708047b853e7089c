package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/danielgtaylor/huma/v2"

	"github.com/beyondbetter/mcphub/internal/contracts"
	"github.com/beyondbetter/mcphub/internal/domain"
)

// DomainResourceMetadata wraps domain.ResourceMetadata for API conversion.
type DomainResourceMetadata domain.ResourceMetadata

// Resources represents a page of Resource types.
type Resources struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
	HasMore    bool       `json:"hasMore,omitempty"`
}

// Resource describes a single resource exposed by an MCP server.
type Resource struct {
	// URI of this resource.
	URI string `json:"uri"`

	// Name is a human-readable name for this resource.
	Name string `json:"name,omitempty"`

	// Type classifies the resource, e.g. "file" or "directory".
	Type string `json:"type,omitempty"`

	// ContentType of this resource, if known.
	ContentType string `json:"contentType,omitempty"`

	// Size in bytes, if known.
	Size int64 `json:"size,omitempty"`

	// LastModified is the modification timestamp, if known.
	LastModified *time.Time `json:"lastModified,omitempty"`

	// Description of what this resource represents.
	Description string `json:"description,omitempty"`
}

// ResourceContent is the loaded content of a single resource.
// Text carries UTF-8 content; Blob carries base64-encoded binary content.
// Exactly one of the two is set.
type ResourceContent struct {
	Resource Resource `json:"resource"`
	Text     string   `json:"text,omitempty"`
	Blob     string   `json:"blob,omitempty"`

	// Partial is true when the server returned a truncated read.
	Partial bool `json:"partial,omitempty"`
}

// ResourceMatch is a single search hit.
type ResourceMatch struct {
	Resource Resource `json:"resource"`
	Snippet  string   `json:"snippet,omitempty"`
	Score    float64  `json:"score,omitempty"`
}

// ServerResourcesRequest represents the incoming API request for listing resources.
type ServerResourcesRequest struct {
	Name string `doc:"Name of the server" path:"name"`
}

// ServerResourceContentRequest represents the incoming API request for loading resource content.
type ServerResourceContentRequest struct {
	Name string `doc:"Name of the server"  path:"name"`
	URI  string `doc:"URI of the resource" query:"uri" required:"true"`
}

// ServerResourceSearchRequest represents the incoming API request for searching resources.
type ServerResourceSearchRequest struct {
	Name  string `doc:"Name of the server"                  path:"name"`
	Query string `doc:"Search query"                        query:"query" required:"true"`
	Limit int    `doc:"Maximum number of matches to return" query:"limit"`
}

// ServerResourceWriteRequest represents the incoming API request for writing a resource.
type ServerResourceWriteRequest struct {
	Name string `doc:"Name of the server" path:"name"`
	Body struct {
		Path        string `doc:"Destination path for the resource"        json:"path"`
		Content     string `doc:"Content to write"                         json:"content"`
		ContentType string `doc:"Content type of the payload"              json:"contentType,omitempty"`
		CreateDirs  bool   `doc:"Create missing parent directories"        json:"createDirs,omitempty"`
		Overwrite   bool   `doc:"Replace the resource if it already exists" json:"overwrite,omitempty"`
	}
}

// ServerResourceMoveRequest represents the incoming API request for moving a resource.
type ServerResourceMoveRequest struct {
	Name string `doc:"Name of the server" path:"name"`
	Body struct {
		Source      string `doc:"URI or path of the resource to move"       json:"source"`
		Destination string `doc:"Destination URI or path"                   json:"destination"`
		CreateDirs  bool   `doc:"Create missing parent directories"         json:"createDirs,omitempty"`
		Overwrite   bool   `doc:"Replace the destination if it exists"      json:"overwrite,omitempty"`
	}
}

// ServerResourceDeleteRequest represents the incoming API request for deleting a resource.
type ServerResourceDeleteRequest struct {
	Name      string `doc:"Name of the server"                 path:"name"`
	Path      string `doc:"URI or path of the resource"        query:"path" required:"true"`
	Recursive bool   `doc:"Delete directory contents recursively" query:"recursive"`
}

// ResourcesResponse represents the wrapped API response for listing resources.
type ResourcesResponse struct {
	Body Resources
}

// ResourceContentResponse represents the wrapped API response for loading resource content.
type ResourceContentResponse struct {
	Body ResourceContent
}

// ResourceSearchResponse represents the wrapped API response for a resource search.
type ResourceSearchResponse struct {
	Body struct {
		Matches []ResourceMatch `doc:"Resources matching the query" json:"matches"`
	}
}

// ResourceWriteResponse represents the wrapped API response for writing a resource.
type ResourceWriteResponse struct {
	Body struct {
		Success  bool     `json:"success"`
		Resource Resource `json:"resource"`
	}
}

// ResourceMoveResponse represents the wrapped API response for moving a resource.
type ResourceMoveResponse struct {
	Body struct {
		Success        bool     `json:"success"`
		SourceURI      string   `json:"sourceUri"`
		DestinationURI string   `json:"destinationUri"`
		Resource       Resource `json:"resource"`
	}
}

// ResourceDeleteResponse represents the wrapped API response for deleting a resource.
type ResourceDeleteResponse struct {
	Body struct {
		Success bool   `json:"success"`
		URI     string `json:"uri"`
	}
}

// ToAPIType converts normalized resource metadata to an API resource.
func (d DomainResourceMetadata) ToAPIType() (Resource, error) {
	var lastModified *time.Time
	if !d.LastModified.IsZero() {
		t := d.LastModified
		lastModified = &t
	}

	return Resource{
		URI:          d.URI,
		Name:         d.Name,
		Type:         d.Type,
		ContentType:  d.ContentType,
		Size:         d.Size,
		LastModified: lastModified,
		Description:  d.Description,
	}, nil
}

// RegisterResourceRoutes registers resource-related routes under the servers API.
func RegisterResourceRoutes(serversAPI huma.API, manager contracts.ServerManager) {
	tags := []string{"Resources"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listResources",
			Method:      http.MethodGet,
			Path:        "/{name}/resources",
			Summary:     "List server resources",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerResourcesRequest) (*ResourcesResponse, error) {
			return handleServerResources(ctx, manager, input.Name)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getResourceContent",
			Method:      http.MethodGet,
			Path:        "/{name}/resources/content",
			Summary:     "Load resource content from a server",
			Description: "Retrieves the content of a resource by URI",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerResourceContentRequest) (*ResourceContentResponse, error) {
			return handleServerResourceContent(ctx, manager, input.Name, input.URI)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "searchResources",
			Method:      http.MethodGet,
			Path:        "/{name}/resources/search",
			Summary:     "Search server resources",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerResourceSearchRequest) (*ResourceSearchResponse, error) {
			return handleServerResourceSearch(ctx, manager, input.Name, input.Query, input.Limit)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "writeResource",
			Method:      http.MethodPut,
			Path:        "/{name}/resources",
			Summary:     "Write a resource to a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerResourceWriteRequest) (*ResourceWriteResponse, error) {
			return handleServerResourceWrite(ctx, manager, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "moveResource",
			Method:      http.MethodPost,
			Path:        "/{name}/resources/move",
			Summary:     "Move or rename a resource on a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerResourceMoveRequest) (*ResourceMoveResponse, error) {
			return handleServerResourceMove(ctx, manager, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "deleteResource",
			Method:      http.MethodDelete,
			Path:        "/{name}/resources",
			Summary:     "Delete a resource from a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerResourceDeleteRequest) (*ResourceDeleteResponse, error) {
			return handleServerResourceDelete(ctx, manager, input.Name, input.Path, input.Recursive)
		},
	)
}

// handleServerResources returns the list of resources for a given server.
func handleServerResources(
	ctx context.Context,
	manager contracts.ServerManager,
	name string,
) (*ResourcesResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.ListResources(ctx, name)
	if err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(result.Resources))
	for _, res := range result.Resources {
		apiRes, err := DomainResourceMetadata(res).ToAPIType()
		if err != nil {
			return nil, err
		}
		resources = append(resources, apiRes)
	}

	resp := &ResourcesResponse{}
	resp.Body = Resources{
		Resources:  resources,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}

	return resp, nil
}

// handleServerResourceContent loads the content of a specific resource from a server.
func handleServerResourceContent(
	ctx context.Context,
	manager contracts.ServerManager,
	name string,
	uri string,
) (*ResourceContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.LoadResource(ctx, name, uri)
	if err != nil {
		return nil, err
	}

	resource, err := DomainResourceMetadata(result.Metadata).ToAPIType()
	if err != nil {
		return nil, err
	}

	content := ResourceContent{
		Resource: resource,
		Partial:  result.Partial,
	}
	if utf8.Valid(result.Content) {
		content.Text = string(result.Content)
	} else {
		content.Blob = base64.StdEncoding.EncodeToString(result.Content)
	}

	resp := &ResourceContentResponse{}
	resp.Body = content

	return resp, nil
}

// handleServerResourceSearch searches a server's resources.
func handleServerResourceSearch(
	ctx context.Context,
	manager contracts.ServerManager,
	name string,
	query string,
	limit int,
) (*ResourceSearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.SearchResources(ctx, name, query, domain.SearchOptions{Limit: limit})
	if err != nil {
		return nil, err
	}

	matches := make([]ResourceMatch, 0, len(result.Matches))
	for _, match := range result.Matches {
		resource, err := DomainResourceMetadata(match.Metadata).ToAPIType()
		if err != nil {
			return nil, err
		}
		matches = append(matches, ResourceMatch{
			Resource: resource,
			Snippet:  match.Snippet,
			Score:    match.Score,
		})
	}

	resp := &ResourceSearchResponse{}
	resp.Body.Matches = matches

	return resp, nil
}

// handleServerResourceWrite writes a resource to a server.
func handleServerResourceWrite(
	ctx context.Context,
	manager contracts.ServerManager,
	input *ServerResourceWriteRequest,
) (*ResourceWriteResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.WriteResource(ctx, input.Name, input.Body.Path, []byte(input.Body.Content), domain.WriteOptions{
		ContentType: input.Body.ContentType,
		CreateDirs:  input.Body.CreateDirs,
		Overwrite:   input.Body.Overwrite,
	})
	if err != nil {
		return nil, err
	}

	resource, err := DomainResourceMetadata(result.Metadata).ToAPIType()
	if err != nil {
		return nil, err
	}

	resp := &ResourceWriteResponse{}
	resp.Body.Success = result.Success
	resp.Body.Resource = resource

	return resp, nil
}

// handleServerResourceMove moves or renames a resource on a server.
func handleServerResourceMove(
	ctx context.Context,
	manager contracts.ServerManager,
	input *ServerResourceMoveRequest,
) (*ResourceMoveResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.MoveResource(ctx, input.Name, input.Body.Source, input.Body.Destination, domain.MoveOptions{
		CreateDirs: input.Body.CreateDirs,
		Overwrite:  input.Body.Overwrite,
	})
	if err != nil {
		return nil, err
	}

	resource, err := DomainResourceMetadata(result.Metadata).ToAPIType()
	if err != nil {
		return nil, err
	}

	resp := &ResourceMoveResponse{}
	resp.Body.Success = result.Success
	resp.Body.SourceURI = result.SourceURI
	resp.Body.DestinationURI = result.DestinationURI
	resp.Body.Resource = resource

	return resp, nil
}

// handleServerResourceDelete deletes a resource from a server.
func handleServerResourceDelete(
	ctx context.Context,
	manager contracts.ServerManager,
	name string,
	path string,
	recursive bool,
) (*ResourceDeleteResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.DeleteResource(ctx, name, path, domain.DeleteOptions{Recursive: recursive})
	if err != nil {
		return nil, err
	}

	resp := &ResourceDeleteResponse{}
	resp.Body.Success = result.Success
	resp.Body.URI = result.URI

	return resp, nil
}
