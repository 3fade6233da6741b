package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

const codeNoSuchKey = "NoSuchKey"

// ObjectRepo реализует хранилище объектов поверх бакета MinIO.
type ObjectRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewObjectRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ObjectRepo {
	return &ObjectRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Put загружает объект целиком.
func (o *ObjectRepo) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := o.mc.PutObject(ctx, o.cfg.BucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Get читает объект целиком. Отсутствующий объект — e.ErrObjectNotFound.
func (o *ObjectRepo) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.mc.GetObject(ctx, o.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), notFound(err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), notFound(err))
	}

	return data, nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (o *ObjectRepo) Delete(ctx context.Context, key string) error {
	if err := o.mc.RemoveObject(ctx, o.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func notFound(err error) error {
	if minio.ToErrorResponse(err).Code == codeNoSuchKey {
		return e.ErrObjectNotFound
	}
	return err
}
