package objectstore

import (
	"fmt"
	"path"
	"strings"
)

// URI renders an s3:// URI DuckDB can read from.
func URI(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseURI splits an s3://bucket/key URI.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("objectstore: %q is not an s3:// URI", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("objectstore: %q needs both bucket and key", uri)
	}
	return bucket, key, nil
}

// NormalizeKey strips an s3://bucket/ prefix to return a bucket-relative key.
// Non-S3 paths are returned unchanged.
func NormalizeKey(p string) string {
	if _, key, err := ParseURI(p); err == nil {
		return key
	}
	return p
}

// JoinKey joins key segments with "/" and cleans the result.
func JoinKey(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}
