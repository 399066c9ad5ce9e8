package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	lhconfig "github.com/quayside-data/lakehouse/internal/config"
	"github.com/quayside-data/lakehouse/internal/objectstore"
)

// fakeS3 is a path-style S3 endpoint holding objects for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
	deny    bool
}

type fakeObject struct {
	data        []byte
	contentType string
	meta        map[string]string
	modified    time.Time
}

type listResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	KeyCount    int           `xml:"KeyCount"`
	MaxKeys     int           `xml:"MaxKeys"`
	IsTruncated bool          `xml:"IsTruncated"`
	Contents    []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]fakeObject)}
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		writeError(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	if f.deny {
		writeError(w, http.StatusForbidden, "AccessDenied")
		return
	}

	if key == "" && r.Method == http.MethodGet {
		f.list(w, r.URL.Query().Get("prefix"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		if r.Header.Get("If-None-Match") == "*" {
			if _, ok := f.objects[key]; ok {
				writeError(w, http.StatusPreconditionFailed, "PreconditionFailed")
				return
			}
		}
		data, _ := io.ReadAll(r.Body)
		meta := make(map[string]string)
		for name, values := range r.Header {
			lower := strings.ToLower(name)
			if strings.HasPrefix(lower, "x-amz-meta-") {
				meta[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
			}
		}
		f.objects[key] = fakeObject{
			data:        data,
			contentType: r.Header.Get("Content-Type"),
			meta:        meta,
			modified:    time.Now().UTC().Truncate(time.Second),
		}
		w.Header().Set("ETag", etag(data))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeError(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Header().Set("ETag", etag(obj.data))
		w.Header().Set("Last-Modified", obj.modified.Format(http.TimeFormat))
		for k, v := range obj.meta {
			w.Header().Set("x-amz-meta-"+k, v)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(obj.data)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	result := listResult{Name: f.bucket, Prefix: prefix, MaxKeys: 1000}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		obj := f.objects[k]
		result.Contents = append(result.Contents, listContent{
			Key:          k,
			LastModified: obj.modified.Format(time.RFC3339),
			ETag:         etag(obj.data),
			Size:         int64(len(obj.data)),
		})
	}
	result.KeyCount = len(result.Contents)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, xml.Header)
	xml.NewEncoder(w).Encode(result)
}

func newTestStore(t *testing.T, bucket string) (*Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3(bucket)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := New(context.Background(), Config{
		Bucket:          bucket,
		Endpoint:        srv.URL,
		Region:          "local-01",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, fake
}

func TestNew(t *testing.T) {
	t.Run("missing bucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{})
		if err == nil {
			t.Error("expected error for missing bucket")
		}
	})

	t.Run("from lakehouse config", func(t *testing.T) {
		cfg := ConfigFrom(lhconfig.Default().ObjectStore)
		if cfg.Bucket != "examples" || cfg.AccessKeyID != "minio-root-user" || !cfg.UsePathStyle {
			t.Errorf("unexpected config: %+v", cfg)
		}
		store, err := New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if store.Bucket() != "examples" {
			t.Errorf("Bucket() = %s", store.Bucket())
		}
	})
}

func TestPutAndGet(t *testing.T) {
	store, _ := newTestStore(t, "examples")
	ctx := context.Background()
	data := []byte("PAR1 fake parquet body PAR1")

	err := store.Put(ctx, "seeds/raw_orders.parquet", bytes.NewReader(data), int64(len(data)), objectstore.PutOptions{
		ContentType: objectstore.ContentTypeParquet,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := store.Get(ctx, "seeds/raw_orders.parquet")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get returned %q, want %q", got, data)
	}
}

func TestPutNonSeekableReader(t *testing.T) {
	store, fake := newTestStore(t, "examples")
	data := []byte("id,name\n1,alice\n")

	// io.MultiReader hides Seek so the store must buffer.
	r := io.MultiReader(bytes.NewReader(data[:4]), bytes.NewReader(data[4:]))
	if err := store.Put(context.Background(), "seeds/customers.csv", r, -1, objectstore.PutOptions{ContentType: objectstore.ContentTypeCSV}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	obj, ok := fake.objects["seeds/customers.csv"]
	if !ok {
		t.Fatal("object not stored")
	}
	if !bytes.Equal(obj.data, data) {
		t.Errorf("stored %q, want %q", obj.data, data)
	}
}

func TestPutWithMetadataAndHead(t *testing.T) {
	store, _ := newTestStore(t, "examples")
	ctx := context.Background()
	data := []byte("content")

	err := store.Put(ctx, "seeds/a.parquet", bytes.NewReader(data), int64(len(data)), objectstore.PutOptions{
		ContentType: objectstore.ContentTypeParquet,
		Metadata:    map[string]string{"content-hash": "abc123"},
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	meta, err := store.Head(ctx, "seeds/a.parquet")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", meta.Size, len(data))
	}
	if meta.ContentType != objectstore.ContentTypeParquet {
		t.Errorf("ContentType = %s", meta.ContentType)
	}
	if meta.ETag != etag(data) {
		t.Errorf("ETag = %s, want %s", meta.ETag, etag(data))
	}
	if meta.Metadata["content-hash"] != "abc123" {
		t.Errorf("Metadata = %v", meta.Metadata)
	}
	if meta.LastModified == 0 {
		t.Error("LastModified not set")
	}
}

func TestIfNoneMatch(t *testing.T) {
	store, _ := newTestStore(t, "examples")
	ctx := context.Background()
	opts := objectstore.PutOptions{IfNoneMatch: "*"}

	if err := store.Put(ctx, "k", bytes.NewReader([]byte("a")), 1, opts); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	err := store.Put(ctx, "k", bytes.NewReader([]byte("b")), 1, opts)
	if !errors.Is(err, objectstore.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestNotFound(t *testing.T) {
	store, _ := newTestStore(t, "examples")
	ctx := context.Background()

	_, err := store.Get(ctx, "seeds/missing.parquet")
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	var objErr *objectstore.ObjectError
	if !errors.As(err, &objErr) || objErr.Key != "seeds/missing.parquet" {
		t.Errorf("Get: expected ObjectError with key, got %v", err)
	}

	_, err = store.Head(ctx, "seeds/missing.parquet")
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Errorf("Head: expected ErrNotFound, got %v", err)
	}
}

func TestAccessDenied(t *testing.T) {
	store, fake := newTestStore(t, "examples")
	fake.deny = true

	_, err := store.Get(context.Background(), "k")
	if !errors.Is(err, objectstore.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}

func TestBucketNotFound(t *testing.T) {
	fake := newFakeS3("examples")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := New(context.Background(), Config{
		Bucket:          "other",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = store.Get(context.Background(), "k")
	if !errors.Is(err, objectstore.ErrBucketNotFound) {
		t.Errorf("expected ErrBucketNotFound, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	store, _ := newTestStore(t, "examples")
	ctx := context.Background()

	for _, key := range []string{"seeds/b.parquet", "seeds/a.parquet", "other/c"} {
		if err := store.Put(ctx, key, bytes.NewReader([]byte(key)), int64(len(key)), objectstore.PutOptions{}); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
	}

	list, err := store.List(ctx, "seeds/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d objects, want 2", len(list))
	}
	if list[0].Key != "seeds/a.parquet" || list[1].Key != "seeds/b.parquet" {
		t.Errorf("List keys = %s, %s", list[0].Key, list[1].Key)
	}
	if list[0].Size != int64(len("seeds/a.parquet")) {
		t.Errorf("Size = %d", list[0].Size)
	}

	if err := store.Delete(ctx, "seeds/a.parquet"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "seeds/a.parquet"); err != nil {
		t.Fatalf("Delete of missing object failed: %v", err)
	}
	if _, err := store.Head(ctx, "seeds/a.parquet"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	store, _ := newTestStore(t, "examples")
	ctx := context.Background()
	store.Close()

	if err := store.Put(ctx, "k", bytes.NewReader(nil), 0, objectstore.PutOptions{}); !errors.Is(err, objectstore.ErrClosed) {
		t.Errorf("Put: expected ErrClosed, got %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, objectstore.ErrClosed) {
		t.Errorf("Get: expected ErrClosed, got %v", err)
	}
	if _, err := store.Head(ctx, "k"); !errors.Is(err, objectstore.ErrClosed) {
		t.Errorf("Head: expected ErrClosed, got %v", err)
	}
	if err := store.Delete(ctx, "k"); !errors.Is(err, objectstore.ErrClosed) {
		t.Errorf("Delete: expected ErrClosed, got %v", err)
	}
	if _, err := store.List(ctx, ""); !errors.Is(err, objectstore.ErrClosed) {
		t.Errorf("List: expected ErrClosed, got %v", err)
	}
}

func TestInstrumentedS3(t *testing.T) {
	store, _ := newTestStore(t, "examples")
	instrumented := objectstore.NewInstrumentedStore(store, nil)
	data := []byte("x")
	if err := instrumented.Put(context.Background(), "seeds/x", bytes.NewReader(data), 1, objectstore.PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

// TestMinIO runs against a real endpoint when LAKEHOUSE_S3_TEST_ENDPOINT
// is set, e.g. the MinIO from the local compose stack.
func TestMinIO(t *testing.T) {
	endpoint := os.Getenv("LAKEHOUSE_S3_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("LAKEHOUSE_S3_TEST_ENDPOINT not set")
	}
	cfg := ConfigFrom(lhconfig.Default().ObjectStore)
	cfg.Endpoint = endpoint
	cfg.Bucket = "lakehouse-test-" + uuid.NewString()[:8]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer store.Close()

	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket failed: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket second call failed: %v", err)
	}

	data := []byte("hello minio")
	if err := store.Put(ctx, "seeds/hello.txt", bytes.NewReader(data), int64(len(data)), objectstore.PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	meta, err := store.Head(ctx, "seeds/hello.txt")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Errorf("Size = %d", meta.Size)
	}
	if err := store.Delete(ctx, "seeds/hello.txt"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	store.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(cfg.Bucket)})
}
