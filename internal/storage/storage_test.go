package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutAndDelete(t *testing.T) {
	// Arrange
	dir := filepath.Join(t.TempDir(), "avatars")
	store, err := NewLocalStore(dir, "/uploads/avatars/")
	require.NoError(t, err)
	ctx := context.Background()

	// Act
	url, err := store.Put(ctx, "abc_0011.png", []byte("png"), "image/png")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/abc_0011.png", url)
	data, err := os.ReadFile(filepath.Join(dir, "abc_0011.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, "abc_0011.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, url), "deleting twice is fine")
}

func TestLocalStore_RejectsUnsafeNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads/avatars")
	require.NoError(t, err)

	for _, name := range []string{"", "../x.png", "a/b.png", ".hidden"} {
		_, err := store.Put(context.Background(), name, []byte("x"), "image/png")
		assert.Error(t, err, "name %q", name)
	}
}

func TestLocalStore_DeleteIgnoresForeignURLs(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/avatars")
	require.NoError(t, err)
	keep := filepath.Join(dir, "keep.png")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0644))

	// Act
	require.NoError(t, store.Delete(context.Background(), "/static/default-avatar.svg"))
	require.NoError(t, store.Delete(context.Background(), "/uploads/avatars/../keep.png"))

	// Assert
	_, err = os.Stat(keep)
	assert.NoError(t, err)
}

type fakeObjectAPI struct {
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutAndDelete(t *testing.T) {
	// Arrange
	api := newFakeObjectAPI()
	store := newS3Store(api, "storyline", "https://cdn.example.com/storyline/")
	ctx := context.Background()

	// Act
	url, err := store.Put(ctx, "abc_0011.jpg", []byte("jpeg"), "image/jpeg")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/storyline/avatars/abc_0011.jpg", url)
	assert.Equal(t, []byte("jpeg"), api.objects["storyline/avatars/abc_0011.jpg"])
	assert.Equal(t, "image/jpeg", api.types["avatars/abc_0011.jpg"])

	require.NoError(t, store.Delete(ctx, url))
	assert.Empty(t, api.objects)
}

func TestS3Store_PutFailure(t *testing.T) {
	api := newFakeObjectAPI()
	api.failPut = true
	store := newS3Store(api, "storyline", "https://cdn.example.com")

	_, err := store.Put(context.Background(), "a.png", []byte("x"), "image/png")
	assert.Error(t, err)
}
