package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"crawlscope/internal/domain"
)

// JSONCodec exports graph snapshots as JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of the export
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Export writes snap as indented JSON
func (c *JSONCodec) Export(snap domain.Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(normalize(snap)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// normalize replaces nil slices so empty graphs export as [] rather than null
func normalize(snap domain.Snapshot) domain.Snapshot {
	if snap.Nodes == nil {
		snap.Nodes = []domain.Node{}
	}
	if snap.Edges == nil {
		snap.Edges = []domain.Edge{}
	}
	return snap
}
