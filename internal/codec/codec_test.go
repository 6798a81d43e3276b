package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlscope/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Nodes: []domain.Node{{ID: "a"}, {ID: "b"}},
		Edges: []domain.Edge{{ID: "a-b", Source: "a", Target: "b", Bidirectional: true}},
	}
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(sampleSnapshot(), &buf))

	assert.JSONEq(t, `{
		"nodes": [{"id": "a"}, {"id": "b"}],
		"edges": [{"id": "a-b", "source": "a", "target": "b", "bidirectional": true}]
	}`, buf.String())
}

func TestJSONExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(domain.Snapshot{}, &buf))
	assert.JSONEq(t, `{"nodes": [], "edges": []}`, buf.String())
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(sampleSnapshot(), &buf))

	assert.YAMLEq(t, `
nodes:
  - id: a
  - id: b
edges:
  - id: a-b
    source: a
    target: b
    bidirectional: true
`, buf.String())
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"json", "yaml"}, reg.Formats())

	e, err := reg.Lookup("yaml")
	require.NoError(t, err)
	assert.Equal(t, "application/yaml", e.ContentType())

	_, err = reg.Lookup("ansible")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
