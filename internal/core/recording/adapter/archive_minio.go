package adapter

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gowvp/camcore/internal/conf"
	"github.com/gowvp/camcore/internal/core/recording"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ recording.Archiver = (*MinIOArchiver)(nil)

// ObjectStore *minio.Client 的子集
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOArchiver 过期录像删除前上传到对象存储
// 对象名为 {camera}/{date}/{hour}/{segment}
type MinIOArchiver struct {
	store  ObjectStore
	bucket string

	mu    sync.Mutex
	ready bool
}

// NewMinIOArchiver Endpoint 为空时返回 nil，表示不归档
func NewMinIOArchiver(cfg conf.MinIO) (*MinIOArchiver, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return NewArchiver(cli, cfg.Bucket), nil
}

// NewArchiver 使用已有的对象存储客户端
func NewArchiver(store ObjectStore, bucket string) *MinIOArchiver {
	return &MinIOArchiver{store: store, bucket: bucket}
}

func (a *MinIOArchiver) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}
	ok, err := a.store.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("bucket[%s]: %w", a.bucket, err)
	}
	if !ok {
		if err := a.store.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket[%s]: %w", a.bucket, err)
		}
	}
	a.ready = true
	return nil
}

// ArchiveDir 上传 dir 下所有 .ts 切片，任一失败即返回错误
func (a *MinIOArchiver) ArchiveDir(ctx context.Context, cameraID, date, dir string) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	var count int
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".ts") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(cameraID, date, filepath.ToSlash(rel))
		if _, err := a.store.FPutObject(ctx, a.bucket, key, p, minio.PutObjectOptions{ContentType: "video/mp2t"}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "recording archived", "camera_id", cameraID, "date", date, "objects", count, "bucket", a.bucket)
	return nil
}
