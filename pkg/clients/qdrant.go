package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

// EnsureCollection проверяет, что коллекция эмбеддингов существует и её векторы нужной размерности.
// Коллекцию наполняет внешний конвейер, сервис её не создаёт.
func EnsureCollection(ctx context.Context, client *QdrantClient, dim int) error {
	exists, err := client.Client.CollectionExists(ctx, client.cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %q does not exist", client.cfg.CollectionName)
	}

	info, err := client.Client.GetCollectionInfo(ctx, client.cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params != nil && params.GetSize() != uint64(dim) {
		return fmt.Errorf("collection %q has %d dims, configured %d", client.cfg.CollectionName, params.GetSize(), dim)
	}

	return nil
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}
