package vectorindex

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/DRSN-tech/recommender/pkg/e"
)

const (
	codecMagic   = "DRSNVIDX"
	codecVersion = 1
)

// Header описывает сериализованный индекс.
type Header struct {
	Magic       string
	Version     int
	Strategy    Strategy
	Dim         int
	Count       int
	Fingerprint uint64 // отпечаток реестра идентификаторов, построенного вместе с индексом
}

type flatState struct {
	Data []float32
}

type ivfState struct {
	NList      int
	NProbe     int
	Iterations int
	Seed       int64
	Centroids  [][]float32
	Lists      [][]int32
	Data       []float32
}

type hnswState struct {
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64
	Levels         []int
	Links          [][][]int32
	Entry          int32
	MaxLevel       int
	Data           []float32
}

// Encode пишет индекс в w. Decode восстанавливает его с идентичными результатами поиска.
func Encode(w io.Writer, idx Index, fingerprint uint64) error {
	enc := gob.NewEncoder(w)

	hdr := Header{
		Magic:       codecMagic,
		Version:     codecVersion,
		Strategy:    idx.Strategy(),
		Dim:         idx.Dim(),
		Count:       idx.Len(),
		Fingerprint: fingerprint,
	}
	if err := enc.Encode(hdr); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	var state any
	switch v := idx.(type) {
	case *Flat:
		state = flatState{Data: v.data}
	case *IVF:
		if !v.trained {
			return e.ErrNotTrained
		}
		state = ivfState{
			NList:      v.nlist,
			NProbe:     v.nprobe,
			Iterations: v.iterations,
			Seed:       v.seed,
			Centroids:  v.centroids,
			Lists:      v.lists,
			Data:       v.data,
		}
	case *HNSW:
		state = hnswState{
			M:              v.m,
			EfConstruction: v.efConstruction,
			EfSearch:       v.efSearch,
			Seed:           v.seed,
			Levels:         v.levels,
			Links:          v.links,
			Entry:          v.entry,
			MaxLevel:       v.maxLevel,
			Data:           v.data,
		}
	default:
		return fmt.Errorf("%T: %w", idx, e.ErrUnknownStrategy)
	}

	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("encode %s state: %w", hdr.Strategy, err)
	}
	return nil
}

// Decode читает индекс, записанный Encode, и его заголовок.
func Decode(r io.Reader) (Index, Header, error) {
	dec := gob.NewDecoder(r)

	var hdr Header
	if err := dec.Decode(&hdr); err != nil {
		return nil, Header{}, fmt.Errorf("decode header: %w: %w", e.ErrCorruptIndex, err)
	}
	if hdr.Magic != codecMagic || hdr.Version != codecVersion {
		return nil, hdr, fmt.Errorf("magic %q version %d: %w", hdr.Magic, hdr.Version, e.ErrCorruptIndex)
	}
	if hdr.Dim <= 0 || hdr.Count < 0 {
		return nil, hdr, fmt.Errorf("dim %d count %d: %w", hdr.Dim, hdr.Count, e.ErrCorruptIndex)
	}

	var (
		idx  Index
		data []float32
		err  error
	)
	switch hdr.Strategy {
	case StrategyFlat:
		var st flatState
		if err = dec.Decode(&st); err == nil {
			f := NewFlat(hdr.Dim)
			f.data, f.n = st.Data, hdr.Count
			idx, data = f, st.Data
		}
	case StrategyIVF:
		var st ivfState
		if err = dec.Decode(&st); err == nil {
			v := NewIVF(hdr.Dim, st.NList, st.NProbe, st.Iterations, st.Seed)
			v.centroids, v.lists, v.trained = st.Centroids, st.Lists, true
			v.data, v.n = st.Data, hdr.Count
			if v.lists == nil {
				v.lists = make([][]int32, len(v.centroids))
			}
			if len(v.lists) != len(v.centroids) {
				return nil, hdr, fmt.Errorf("ivf lists/centroids: %w", e.ErrCorruptIndex)
			}
			idx, data = v, st.Data
		}
	case StrategyHNSW:
		var st hnswState
		if err = dec.Decode(&st); err == nil {
			h := NewHNSW(hdr.Dim, st.M, st.EfConstruction, st.EfSearch, st.Seed)
			h.levels, h.links, h.entry, h.maxLevel = st.Levels, st.Links, st.Entry, st.MaxLevel
			h.data, h.n = st.Data, hdr.Count
			if len(h.links) != hdr.Count || (hdr.Count > 0 && (h.entry < 0 || int(h.entry) >= hdr.Count)) {
				return nil, hdr, fmt.Errorf("hnsw graph: %w", e.ErrCorruptIndex)
			}
			idx, data = h, st.Data
		}
	default:
		return nil, hdr, fmt.Errorf("%q: %w", hdr.Strategy, e.ErrUnknownStrategy)
	}
	if err != nil {
		return nil, hdr, fmt.Errorf("decode %s state: %w: %w", hdr.Strategy, e.ErrCorruptIndex, err)
	}

	if len(data) != hdr.Count*hdr.Dim {
		return nil, hdr, fmt.Errorf("payload has %d floats, want %d: %w", len(data), hdr.Count*hdr.Dim, e.ErrCorruptIndex)
	}
	return idx, hdr, nil
}
