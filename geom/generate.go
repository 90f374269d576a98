package geom

import (
	"math/rand"

	"github.com/jamestiotio/embree/types"
)

// Generate produces a reproducible synthetic scene: count unit-scale
// primitives jittered around clusters cluster centers spread through a
// 200-unit cube. All primitives of a cluster share one geometry identifier,
// so every cluster behaves like an instanced object.
func Generate(count, clusters int, seed int64) []Item {
	if clusters < 1 {
		clusters = 1
	}
	rng := rand.New(rand.NewSource(seed))

	centers := make([]types.Vec3, clusters)
	for c := range centers {
		centers[c] = types.XYZ(
			rng.Float32()*200-100,
			rng.Float32()*200-100,
			rng.Float32()*200-100,
		)
	}

	items := make([]Item, count)
	for i := range items {
		c := i % clusters
		pos := centers[c].Add(types.XYZ(
			rng.Float32()*50-25,
			rng.Float32()*50-25,
			rng.Float32()*50-25,
		))
		half := types.XYZ(
			rng.Float32()*0.5+0.1,
			rng.Float32()*0.5+0.1,
			rng.Float32()*0.5+0.1,
		)
		items[i] = Item{
			Bounds: types.NewBox(pos.Sub(half), pos.Add(half)),
			GeomID: uint32(c),
			PrimID: uint32(i),
		}
	}
	return items
}
