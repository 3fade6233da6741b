package vectorindex

import (
	"math/rand"

	"github.com/DRSN-tech/recommender/pkg/vecmath"
)

func randomUnitVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		vecmath.Normalize(v)
		out[i] = v
	}
	return out
}

// clusteredVectors возвращает blobs плотных групп вокруг случайных центров.
func clusteredVectors(rng *rand.Rand, blobs, perBlob, dim int, spread float64) [][]float32 {
	centers := randomUnitVectors(rng, blobs, dim)
	out := make([][]float32, 0, blobs*perBlob)
	for _, c := range centers {
		for i := 0; i < perBlob; i++ {
			v := make([]float32, dim)
			for j := range v {
				v[j] = c[j] + float32(rng.NormFloat64()*spread)
			}
			vecmath.Normalize(v)
			out = append(out, v)
		}
	}
	return out
}

func positions(results []SearchResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Position
	}
	return out
}
