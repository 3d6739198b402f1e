package fsxs3_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/fsx"
	"github.com/Abraxas-365/flashmoji/pkg/fsx/fsxs3"
)

// fakeS3 is a path-style S3 endpoint with a single optional bucket
type fakeS3 struct {
	mu          sync.Mutex
	bucket      string
	exists      bool
	creates     int
	objects     map[string][]byte
	contentType map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if parts[0] != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 1 || parts[1] == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			f.exists = true
			f.creates++
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	key := parts[1]
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.contentType[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", f.contentType[key])
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newStore(t *testing.T, fake *fakeS3, opts ...fsxs3.Option) *fsxs3.S3FileSystem {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  aws.AnonymousCredentials{},
	})
	return fsxs3.NewS3FileSystem(client, fake.bucket, "", opts...)
}

func TestEnsureContainerCreatesOnce(t *testing.T) {
	fake := &fakeS3{bucket: "emoji-images", objects: map[string][]byte{}, contentType: map[string]string{}}
	store := newStore(t, fake)
	ctx := context.Background()

	require.NoError(t, store.EnsureContainer(ctx))
	require.NoError(t, store.EnsureContainer(ctx))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.creates)
}

func TestWriteFileSetsContentType(t *testing.T) {
	fake := &fakeS3{bucket: "emoji-images", exists: true, objects: map[string][]byte{}, contentType: map[string]string{}}
	store := newStore(t, fake, fsxs3.WithPublicBaseURL("https://cdn.test/"))
	ctx := context.Background()

	require.NoError(t, store.WriteFile(ctx, "images/42.png", []byte("png-bytes"), fsx.WithContentType("image/webp")))

	fake.mu.Lock()
	assert.Equal(t, "png-bytes", string(fake.objects["images/42.png"]))
	assert.Equal(t, "image/webp", fake.contentType["images/42.png"])
	fake.mu.Unlock()
	assert.Equal(t, "https://cdn.test/images/42.png", store.PublicURL("images/42.png"))

	ok, err := store.Exists(ctx, "images/42.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "images/43.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublicURLDefaultsToBucketHost(t *testing.T) {
	fake := &fakeS3{bucket: "emoji-images", objects: map[string][]byte{}, contentType: map[string]string{}}
	store := newStore(t, fake, fsxs3.WithRegion("eu-west-1"))

	assert.Equal(t, "https://emoji-images.s3.eu-west-1.amazonaws.com/7.png", store.PublicURL("7.png"))
}
