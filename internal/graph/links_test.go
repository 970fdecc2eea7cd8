package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkedGraph = `{
  "schemaVersion": 1,
  "nodes": [
    {"id": 0, "uuid": "a", "name": "Plate", "type": "sotugyo.io.ReadNode"},
    {"id": 1, "uuid": "b", "name": "Nuke 15", "type": "sotugyo.tooling.ToolEnvironmentNode",
     "properties": {"package": "nuke", "version": "15.1"}},
    {"id": 2, "name": "Review", "type": "sotugyo.review.ReviewNode"},
    {"id": 3, "name": "Archive", "type": "sotugyo.io.WriteNode"}
  ],
  "connections": [
    {"source": 0, "source_uuid": "a", "target": 1, "target_uuid": "b"},
    {"source": 1, "source_uuid": "b", "target": 2},
    {"source": 1, "source_uuid": "b", "target": 2, "target_port": "notes"},
    {"source": 2, "target": 3},
    {"source": 9, "source_uuid": "gone", "target": 3}
  ]
}`

func TestUpstreamAndDownstream(t *testing.T) {
	doc, err := Parse([]byte(linkedGraph))
	require.NoError(t, err)

	nuke, ok := doc.Find("nuke 15")
	require.True(t, ok)
	assert.Equal(t, []string{"Plate"}, NodeNames(doc.Upstream(*nuke)))
	assert.Equal(t, []string{"Review"}, NodeNames(doc.Downstream(*nuke)))

	archive, ok := doc.Find("Archive")
	require.True(t, ok)
	assert.Equal(t, []string{"Review"}, NodeNames(doc.Upstream(*archive)))
	assert.Empty(t, doc.Downstream(*archive))

	plate, ok := doc.Find("a")
	require.True(t, ok)
	assert.Empty(t, doc.Upstream(*plate))
}
