package domain

import "time"

// ResourceMetadata is the canonical description of a single resource.
// Adapters normalize every server response into this shape regardless of the
// field naming convention the server uses on the wire.
type ResourceMetadata struct {
	URI          string    `json:"uri"`
	Name         string    `json:"name,omitempty"`
	Type         string    `json:"type,omitempty"`
	ContentType  string    `json:"contentType,omitempty"`
	Size         int64     `json:"size,omitempty"`
	LastModified time.Time `json:"lastModified"`
	Description  string    `json:"description,omitempty"`
}

// ResourceLoadResult is the outcome of reading a single resource.
type ResourceLoadResult struct {
	Content  []byte           `json:"content"`
	Metadata ResourceMetadata `json:"metadata"`

	// Partial is true when the server returned a truncated read.
	Partial bool `json:"partial,omitempty"`
}

// ResourceListResult is the outcome of listing a server's resources.
type ResourceListResult struct {
	Resources  []ResourceMetadata `json:"resources"`
	NextCursor string             `json:"nextCursor,omitempty"`
	HasMore    bool               `json:"hasMore,omitempty"`
}

// ResourceMatch is a single search hit.
type ResourceMatch struct {
	Metadata ResourceMetadata `json:"metadata"`
	Snippet  string           `json:"snippet,omitempty"`
	Score    float64          `json:"score,omitempty"`
}

// ResourceSearchResult is the outcome of a resource search.
type ResourceSearchResult struct {
	Matches []ResourceMatch `json:"matches"`
}

// ResourceWriteResult is the outcome of writing a resource.
type ResourceWriteResult struct {
	Success  bool             `json:"success"`
	Metadata ResourceMetadata `json:"metadata"`
}

// ResourceMoveResult is the outcome of moving or renaming a resource.
type ResourceMoveResult struct {
	Success        bool             `json:"success"`
	SourceURI      string           `json:"sourceUri"`
	DestinationURI string           `json:"destinationUri"`
	Metadata       ResourceMetadata `json:"metadata"`
}

// ResourceDeleteResult is the outcome of deleting a resource.
type ResourceDeleteResult struct {
	Success bool   `json:"success"`
	URI     string `json:"uri"`
}

// SearchOptions tunes a resource search.
type SearchOptions struct {
	// Limit caps the number of matches returned; zero means server default.
	Limit int `json:"limit,omitempty"`
}

// WriteOptions tunes a resource write.
type WriteOptions struct {
	ContentType string `json:"contentType,omitempty"`
	CreateDirs  bool   `json:"createDirs,omitempty"`
	Overwrite   bool   `json:"overwrite,omitempty"`
}

// MoveOptions tunes a resource move.
type MoveOptions struct {
	CreateDirs bool `json:"createDirs,omitempty"`
	Overwrite  bool `json:"overwrite,omitempty"`
}

// DeleteOptions tunes a resource delete.
type DeleteOptions struct {
	Recursive bool `json:"recursive,omitempty"`
}
