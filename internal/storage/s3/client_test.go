package s3_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"illust_nest/internal/config"
	"illust_nest/internal/storage"
	s3store "illust_nest/internal/storage/s3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"exports/", "images.zip", "exports/images.zip"},
		{"/exports", "../../etc/passwd", "exports/passwd"},
		{"", "work_4.zip", "work_4.zip"},
		{"a/b/", `dir\work.zip`, "a/b/work.zip"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s3store.ObjectKey(tt.prefix, tt.name))
	}
}

type fakeBucket struct {
	mu      sync.Mutex
	exists  bool
	objects map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if parts[0] != "gallery" || !b.exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[parts[1]] = string(data)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func s3Config(endpoint string) config.S3Config {
	return config.S3Config{
		Bucket:          "gallery",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Prefix:          "exports/",
	}
}

func TestClient_Put(t *testing.T) {
	bucket := &fakeBucket{exists: true, objects: map[string]string{}}
	srv := httptest.NewServer(bucket)
	defer srv.Close()

	ctx := context.Background()

	client, err := s3store.New(ctx, s3Config(srv.URL))
	require.NoError(t, err)

	loc, err := client.Put(ctx, "images.zip", strings.NewReader("PK"), "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "s3://gallery/exports/images.zip", loc)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	assert.Contains(t, bucket.objects["exports/images.zip"], "PK")
}

func TestNew_MissingBucket(t *testing.T) {
	srv := httptest.NewServer(&fakeBucket{objects: map[string]string{}})
	defer srv.Close()

	_, err := s3store.New(context.Background(), s3Config(srv.URL))
	require.ErrorIs(t, err, storage.ErrBucketNotFound)
}
