package media

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/pkg/core"
)

// Uploader is the subset of *minio.Client the object store picker uses.
type Uploader interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	EndpointURL() *url.URL
}

// ObjectStorePicker wraps another picker and uploads every picked file to an
// S3-compatible bucket, so the locator resolves from any session.
type ObjectStorePicker struct {
	next     Picker
	uploader Uploader
	bucket   string
	newKey   func() string
}

// NewMinioClient connects to the configured endpoint.
func NewMinioClient(cfg config.MinioConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// NewObjectStorePicker decorates next with an upload to bucket.
func NewObjectStorePicker(next Picker, uploader Uploader, bucket string) *ObjectStorePicker {
	return &ObjectStorePicker{
		next:     next,
		uploader: uploader,
		bucket:   bucket,
		newKey:   uuid.NewString,
	}
}

func (p *ObjectStorePicker) RequestPermission(ctx context.Context) (Permission, error) {
	return p.next.RequestPermission(ctx)
}

// PickImage delegates the pick and uploads the result. Cancelled picks are
// passed through without an upload.
func (p *ObjectStorePicker) PickImage(ctx context.Context) (Pick, error) {
	pick, err := p.next.PickImage(ctx)
	if err != nil || pick.Cancelled {
		return pick, err
	}

	local, err := localPath(pick.Locator)
	if err != nil {
		return Pick{}, err
	}

	opts := minio.PutObjectOptions{}
	if mt, err := mimetype.DetectFile(local); err == nil {
		opts.ContentType = mt.String()
	}

	key := "images/" + p.newKey() + strings.ToLower(filepath.Ext(local))
	info, err := p.uploader.FPutObject(ctx, p.bucket, key, local, opts)
	if err != nil {
		return Pick{}, fmt.Errorf("upload image: %w", err)
	}

	u := *p.uploader.EndpointURL()
	u.Path = path.Join("/", info.Bucket, info.Key)
	return Pick{Locator: core.ResourceLocator(u.String())}, nil
}

func localPath(loc core.ResourceLocator) (string, error) {
	s := loc.String()
	if !strings.HasPrefix(s, "file://") {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse image locator: %w", err)
	}
	return filepath.FromSlash(u.Path), nil
}
