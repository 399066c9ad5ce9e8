package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quayside-data/lakehouse/internal/logging"
	"github.com/quayside-data/lakehouse/internal/objectstore"
)

// MetadataContentHash is the object metadata key holding the seed's content hash.
const MetadataContentHash = "content-hash"

// contentNamespace scopes the name-based UUIDs used as seed content hashes.
var contentNamespace = uuid.MustParse("6f1c3c0e-2a55-4b8e-9d7e-8a1f0b6c4d21")

// ContentHash returns a stable name-based UUID (v5) for the CSV bytes.
func ContentHash(data []byte) string {
	return uuid.NewSHA1(contentNamespace, data).String()
}

// Result describes one uploaded seed.
type Result struct {
	Name    string
	Key     string
	URI     string
	Rows    int
	Size    int64
	Hash    string
	Skipped bool
}

// Uploader converts CSV seeds and writes them to an object store.
type Uploader struct {
	store       objectstore.Store
	bucket      string
	prefix      string
	concurrency int
	logger      *logging.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithConcurrency bounds parallel uploads in UploadDir. Default 4.
func WithConcurrency(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUploader creates an Uploader writing to bucket under prefix.
func NewUploader(store objectstore.Store, bucket, prefix string, opts ...Option) *Uploader {
	u := &Uploader{
		store:       store,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		concurrency: 4,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Key returns the object key for a seed name.
func (u *Uploader) Key(name string) string {
	return objectstore.JoinKey(u.prefix, name+".parquet")
}

// URI returns the s3:// URI DuckDB reads a seed from.
func (u *Uploader) URI(name string) string {
	return objectstore.URI(u.bucket, u.Key(name))
}

// Upload converts one CSV seed and stores it. The upload is skipped when
// the stored object already carries the same content hash.
func (u *Uploader) Upload(ctx context.Context, name string, csvData []byte) (Result, error) {
	key := u.Key(name)
	res := Result{
		Name: name,
		Key:  key,
		URI:  objectstore.URI(u.bucket, key),
		Hash: ContentHash(csvData),
	}

	meta, err := u.store.Head(ctx, key)
	switch {
	case err == nil && meta.Metadata[MetadataContentHash] == res.Hash:
		res.Size = meta.Size
		res.Skipped = true
		u.logger.Debugf("seed unchanged", map[string]any{"seed": name, "key": key})
		return res, nil
	case err != nil && !errors.Is(err, objectstore.ErrNotFound):
		return res, fmt.Errorf("seed %s: %w", name, err)
	}

	table, err := ReadCSV(bytes.NewReader(csvData))
	if err != nil {
		return res, fmt.Errorf("seed %s: %w", name, err)
	}
	data, err := table.WriteParquet()
	if err != nil {
		return res, fmt.Errorf("seed %s: %w", name, err)
	}

	err = u.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), objectstore.PutOptions{
		ContentType: objectstore.ContentTypeParquet,
		Metadata:    map[string]string{MetadataContentHash: res.Hash},
	})
	if err != nil {
		return res, fmt.Errorf("seed %s: %w", name, err)
	}

	res.Rows = len(table.Rows)
	res.Size = int64(len(data))
	u.logger.Infof("seed uploaded", map[string]any{
		"seed": name,
		"uri":  res.URI,
		"rows": res.Rows,
		"size": res.Size,
	})
	return res, nil
}

// UploadFile uploads a single CSV file named after its base name.
func (u *Uploader) UploadFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("seed: %w", err)
	}
	return u.Upload(ctx, Name(path), data)
}

// UploadDir uploads every *.csv file in dir in parallel. Results are
// returned in name order; the first error cancels the remaining uploads.
func (u *Uploader) UploadDir(ctx context.Context, dir string) ([]Result, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	sort.Strings(files)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(files))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for _, f := range files {
		g.Go(func() error {
			res, err := u.UploadFile(gctx, f)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

// Name returns the seed name for a CSV path.
func Name(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
