package media

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepins/pinboard/internal/config"
	"github.com/storepins/pinboard/pkg/core"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestPermission_String(t *testing.T) {
	assert.Equal(t, "granted", PermissionGranted.String())
	assert.Equal(t, "denied", PermissionDenied.String())
}

func TestFilePicker_PickPNG(t *testing.T) {
	p := writeTemp(t, "shop.png", pngHeader)
	picker := NewFilePicker(p)

	perm, err := picker.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, perm)

	pick, err := picker.PickImage(context.Background())
	require.NoError(t, err)
	assert.False(t, pick.Cancelled)
	assert.True(t, strings.HasPrefix(pick.Locator.String(), "file://"))
	assert.True(t, strings.HasSuffix(pick.Locator.String(), "/shop.png"))
}

func TestFilePicker_EmptyPathCancels(t *testing.T) {
	picker := NewFilePicker("  ")

	perm, err := picker.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, perm)

	pick, err := picker.PickImage(context.Background())
	require.NoError(t, err)
	assert.True(t, pick.Cancelled)
	assert.True(t, pick.Locator.IsZero())
}

func TestFilePicker_NotAnImage(t *testing.T) {
	p := writeTemp(t, "notes.txt", []byte("just some text"))

	_, err := NewFilePicker(p).PickImage(context.Background())
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestFilePicker_Missing(t *testing.T) {
	picker := NewFilePicker(filepath.Join(t.TempDir(), "gone.png"))

	perm, err := picker.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, perm)

	_, err = picker.PickImage(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrPermissionDenied)
}

func TestFilePicker_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	p := writeTemp(t, "locked.png", pngHeader)
	require.NoError(t, os.Chmod(p, 0o000))

	perm, err := NewFilePicker(p).RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, perm)
}

func TestFilePicker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFilePicker("x.png").PickImage(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeUploader struct {
	calls    int
	bucket   string
	object   string
	filePath string
	opts     minio.PutObjectOptions
	err      error
}

func (f *fakeUploader) FPutObject(_ context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.calls++
	f.bucket, f.object, f.filePath, f.opts = bucket, object, filePath, opts
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	return minio.UploadInfo{Bucket: bucket, Key: object}, nil
}

func (f *fakeUploader) EndpointURL() *url.URL {
	return &url.URL{Scheme: "https", Host: "s3.example.test"}
}

type stubPicker struct {
	perm Permission
	pick Pick
	err  error
}

func (s stubPicker) RequestPermission(context.Context) (Permission, error) { return s.perm, nil }
func (s stubPicker) PickImage(context.Context) (Pick, error)               { return s.pick, s.err }

func TestObjectStorePicker_Uploads(t *testing.T) {
	p := writeTemp(t, "Front.PNG", pngHeader)
	up := &fakeUploader{}
	picker := NewObjectStorePicker(NewFilePicker(p), up, "pinboard-images")
	picker.newKey = func() string { return "fixed" }

	pick, err := picker.PickImage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, up.calls)
	assert.Equal(t, "pinboard-images", up.bucket)
	assert.Equal(t, "images/fixed.png", up.object)
	assert.Equal(t, p, up.filePath)
	assert.Equal(t, "image/png", up.opts.ContentType)
	assert.Equal(t, core.ResourceLocator("https://s3.example.test/pinboard-images/images/fixed.png"), pick.Locator)
}

func TestObjectStorePicker_CancelSkipsUpload(t *testing.T) {
	up := &fakeUploader{}
	picker := NewObjectStorePicker(stubPicker{perm: PermissionGranted, pick: Cancelled}, up, "b")

	pick, err := picker.PickImage(context.Background())
	require.NoError(t, err)
	assert.True(t, pick.Cancelled)
	assert.Equal(t, 0, up.calls)
}

func TestObjectStorePicker_PermissionPassThrough(t *testing.T) {
	picker := NewObjectStorePicker(stubPicker{perm: PermissionDenied}, &fakeUploader{}, "b")

	perm, err := picker.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, perm)
}

func TestObjectStorePicker_UploadError(t *testing.T) {
	p := writeTemp(t, "a.png", pngHeader)
	up := &fakeUploader{err: errors.New("bucket missing")}
	picker := NewObjectStorePicker(NewFilePicker(p), up, "b")

	_, err := picker.PickImage(context.Background())
	assert.ErrorContains(t, err, "bucket missing")
}

func TestNewMinioClient(t *testing.T) {
	client, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "http", client.EndpointURL().Scheme)

	_, err = NewMinioClient(config.MinioConfig{Endpoint: "http://bad host"})
	assert.Error(t, err)
}
