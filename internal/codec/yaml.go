package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"crawlscope/internal/domain"
)

// YAMLCodec exports graph snapshots as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of the export
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// Export writes snap as YAML with two-space indentation
func (c *YAMLCodec) Export(snap domain.Snapshot, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(normalize(snap)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to flush YAML: %w", err)
	}

	return nil
}
