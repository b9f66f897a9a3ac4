package keygen

import (
	"github.com/wehubfusion/keygen/pkg/embedded/pathutil"
	"github.com/wehubfusion/keygen/pkg/jsonvalue"
)

// Material is the digest input assembled from one document.
type Material struct {
	// Input is the concatenation of every resolved value, in lookup order.
	Input []byte
	// Missing lists the configured paths that resolved to nothing.
	Missing []string
}

// Materializer assembles key material for a fixed lookup list.
type Materializer struct {
	lookup []pathutil.Path
}

// NewMaterializer creates a materializer over lookup. Order is significant.
func NewMaterializer(lookup []pathutil.Path) *Materializer {
	return &Materializer{lookup: lookup}
}

// Materialize resolves every lookup path against doc and concatenates the
// results without separators. Strings contribute their raw contents, other
// values their canonical JSON text and missing paths nothing.
func (m *Materializer) Materialize(doc jsonvalue.Value) Material {
	material := Material{Input: []byte{}}
	for _, p := range m.lookup {
		res := pathutil.Resolve(doc, p)
		if !res.Found {
			material.Missing = append(material.Missing, p.String())
			continue
		}
		material.Input = jsonvalue.AppendText(material.Input, res.Value)
	}
	return material
}
