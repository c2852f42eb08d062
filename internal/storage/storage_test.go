package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
}

func (f *fakeObjectAPI) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, input)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, input)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(t *testing.T) (*Store, *fakeObjectAPI) {
	t.Helper()
	api := &fakeObjectAPI{}
	store, err := NewWithClient(api, "media", "https://cdn.example.com")
	require.NoError(t, err)
	return store, api
}

func TestUploadImage(t *testing.T) {
	store, api := newTestStore(t)

	obj, err := store.UploadImage(context.Background(), strings.NewReader("fake-bytes"), 10, "image/png", "avatars")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(obj.Key, "avatars/"))
	require.True(t, strings.HasSuffix(obj.Key, ".png"))
	require.Equal(t, "https://cdn.example.com/"+obj.Key, obj.URL)
	require.Equal(t, int64(10), obj.Bytes)

	require.Len(t, api.puts, 1)
	require.Equal(t, "media", *api.puts[0].Bucket)
	require.Equal(t, "image/png", *api.puts[0].ContentType)
}

func TestUploadImageRejectsUnknownMIME(t *testing.T) {
	store, api := newTestStore(t)

	_, err := store.UploadImage(context.Background(), strings.NewReader("x"), 1, "application/zip", "avatars")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
	require.Empty(t, api.puts)
}

func TestUploadImageRejectsOversize(t *testing.T) {
	store, api := newTestStore(t)

	_, err := store.UploadImage(context.Background(), strings.NewReader("x"), MaxImageBytes+1, "image/jpeg", "avatars")
	require.ErrorIs(t, err, ErrObjectTooLarge)
	require.Empty(t, api.puts)
}

func TestUploadDocument(t *testing.T) {
	store, _ := newTestStore(t)

	obj, err := store.UploadDocument(context.Background(), strings.NewReader("doc"), 3, "application/pdf; charset=binary", "reports")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(obj.Key, "reports/"))
	require.True(t, strings.HasSuffix(obj.Key, ".pdf"))

	_, err = store.UploadDocument(context.Background(), strings.NewReader("doc"), 3, "image/png", "reports")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestUploadDefaultsFolder(t *testing.T) {
	store, _ := newTestStore(t)

	obj, err := store.UploadImage(context.Background(), strings.NewReader("x"), 1, "image/webp", "  ")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(obj.Key, "uploads/"))
}

func TestDelete(t *testing.T) {
	store, api := newTestStore(t)

	require.NoError(t, store.Delete(context.Background(), "avatars/abc.png"))
	require.Len(t, api.deletes, 1)
	require.Equal(t, "avatars/abc.png", *api.deletes[0].Key)

	require.Error(t, store.Delete(context.Background(), "  "))
}
