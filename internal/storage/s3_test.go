package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), ctypes: make(map[string]string)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.ctypes[*input.Key] = aws.ToString(input.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentType:   aws.String(m.ctypes[*input.Key]),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestImageStoreRoundTrip(t *testing.T) {
	client := newMockS3()
	store := &ImageStore{client: client, bucket: "rewards"}
	ctx := context.Background()

	id, err := store.Upload(ctx, []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Contains(t, client.objects, keyPrefix+id)

	obj, err := store.Open(ctx, id)
	require.NoError(t, err)
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	_ = obj.Body.Close()
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, store.Delete(ctx, id))
	assert.NotContains(t, client.objects, keyPrefix+id)

	_, err = store.Open(ctx, id)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestImageStoreDeleteToleratesMissing(t *testing.T) {
	client := newMockS3()
	client.delErr = &types.NoSuchKey{}
	store := &ImageStore{client: client, bucket: "rewards"}

	assert.NoError(t, store.Delete(context.Background(), "gone"))
	assert.NoError(t, store.Delete(context.Background(), ""))
}

func TestImageStoreDeleteFailure(t *testing.T) {
	client := newMockS3()
	client.delErr = errors.New("access denied")
	store := &ImageStore{client: client, bucket: "rewards"}

	assert.Error(t, store.Delete(context.Background(), "img"))
}

func TestImageStoreUploadFailure(t *testing.T) {
	client := newMockS3()
	client.putErr = errors.New("bucket unavailable")
	store := &ImageStore{client: client, bucket: "rewards"}

	_, err := store.Upload(context.Background(), []byte("x"), "image/png")
	assert.Error(t, err)
}

func TestNewImageStoreRequiresBucket(t *testing.T) {
	_, err := NewImageStore(Config{})
	assert.Error(t, err)

	store, err := NewImageStore(Config{Bucket: "rewards", Region: "us-east-1", Endpoint: "http://localhost:9000"})
	require.NoError(t, err)
	assert.Equal(t, "rewards", store.bucket)
}
