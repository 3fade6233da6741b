package lifecycle

import (
	"bytes"
	"fmt"
	"time"

	"github.com/DRSN-tech/recommender/internal/registry"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/goccy/go-json"
)

// Artifact — сериализованное поколение: индекс и соответствие позиций идентификаторам.
// Обе части сохраняются и загружаются только вместе.
type Artifact struct {
	GenerationID string
	BuiltAt      time.Time
	Index        []byte
	Mapping      []byte
}

type mappingDoc struct {
	GenerationID string    `json:"generation_id"`
	Strategy     string    `json:"strategy"`
	BuiltAt      time.Time `json:"built_at"`
	Fingerprint  uint64    `json:"fingerprint"`
	IDs          []string  `json:"ids"`
}

// EncodeArtifact сериализует поколение.
func EncodeArtifact(gen *Generation) (*Artifact, error) {
	const op = "lifecycle.EncodeArtifact"

	var buf bytes.Buffer
	if err := vectorindex.Encode(&buf, gen.Index(), gen.Registry().Fingerprint()); err != nil {
		return nil, e.Wrap(op, err)
	}

	mapping, err := json.Marshal(mappingDoc{
		GenerationID: gen.ID(),
		Strategy:     string(gen.Strategy()),
		BuiltAt:      gen.BuiltAt(),
		Fingerprint:  gen.Registry().Fingerprint(),
		IDs:          gen.Registry().IDs(),
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &Artifact{
		GenerationID: gen.ID(),
		BuiltAt:      gen.BuiltAt(),
		Index:        buf.Bytes(),
		Mapping:      mapping,
	}, nil
}

// DecodeArtifact восстанавливает индекс и реестр и проверяет, что они из одного поколения.
func DecodeArtifact(a *Artifact) (vectorindex.Index, *registry.Registry, error) {
	const op = "lifecycle.DecodeArtifact"

	if a == nil || len(a.Index) == 0 || len(a.Mapping) == 0 {
		return nil, nil, e.Wrap(op, e.ErrArtifactIncomplete)
	}

	idx, hdr, err := vectorindex.Decode(bytes.NewReader(a.Index))
	if err != nil {
		return nil, nil, e.Wrap(op, err)
	}

	var doc mappingDoc
	if err := json.Unmarshal(a.Mapping, &doc); err != nil {
		return nil, nil, e.Wrap(op, fmt.Errorf("mapping: %w: %w", e.ErrArtifactMismatch, err))
	}

	reg, err := registry.New(doc.IDs)
	if err != nil {
		return nil, nil, e.Wrap(op, err)
	}

	switch {
	case reg.Len() != idx.Len():
		return nil, nil, e.Wrap(op, fmt.Errorf("mapping has %d ids, index has %d vectors: %w", reg.Len(), idx.Len(), e.ErrArtifactMismatch))
	case hdr.Fingerprint != reg.Fingerprint() || doc.Fingerprint != reg.Fingerprint():
		return nil, nil, e.Wrap(op, fmt.Errorf("fingerprint mismatch: %w", e.ErrArtifactMismatch))
	case a.GenerationID != "" && doc.GenerationID != a.GenerationID:
		return nil, nil, e.Wrap(op, fmt.Errorf("mapping belongs to generation %q, want %q: %w", doc.GenerationID, a.GenerationID, e.ErrArtifactMismatch))
	}

	return idx, reg, nil
}
