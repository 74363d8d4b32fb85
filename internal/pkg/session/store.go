package session

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const s3Prefix = "s3://"

// Partition directory name used for rows whose partition column is null.
const hiveDefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// Store is the object-store primitive the session runs on. Paths are full
// URIs: an s3://bucket/prefix key or a local filesystem path.
type Store interface {

	// List returns the full paths of all objects under root. A missing local
	// root or an empty S3 prefix yields an error from the caller, not here.
	List(ctx context.Context, root string) ([]string, error)

	// Fetch reads a whole object into memory.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Put copies a local staging file to path, creating parents as needed.
	Put(ctx context.Context, path string, localFile string) error

	// RemoveAll deletes everything under root. Removing a non-existent root
	// is not an error.
	RemoveAll(ctx context.Context, root string) error
}

// IsS3Path reports whether p addresses an S3 object rather than a local file.
func IsS3Path(p string) bool {
	return strings.HasPrefix(p, s3Prefix)
}

// Join joins path elements below a root, preserving the URI scheme for S3
// roots.
func Join(root string, elem ...string) string {
	if IsS3Path(root) {
		rest := path.Join(append([]string{strings.TrimPrefix(root, s3Prefix)}, elem...)...)
		return s3Prefix + rest
	}
	return path.Join(append([]string{root}, elem...)...)
}

func parseS3Path(p string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(p, s3Prefix)
	if trimmed == p {
		return "", "", fmt.Errorf("not an s3 path: %s", p)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in s3 path: %s", p)
	}
	return bucket, key, nil
}

// formatPartitionValue renders a partition column value as its directory
// name component. Null values map to the hive default partition name.
func formatPartitionValue(v any) string {
	if v == nil {
		return hiveDefaultPartition
	}
	var s string
	switch value := v.(type) {
	case string:
		s = value
	case int:
		s = strconv.Itoa(value)
	case int32:
		s = strconv.FormatInt(int64(value), 10)
	case int64:
		s = strconv.FormatInt(value, 10)
	case float64:
		s = strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(value)
	default:
		s = fmt.Sprintf("%v", value)
	}
	return escapePartitionValue(s)
}

// escapePartitionValue percent-encodes the characters that would corrupt a
// partition path. Everything else, including spaces, stays literal.
func escapePartitionValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '/', '\\', '=', '%', '\n', '\r', '\t':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func unescapePartitionValue(s string) string {
	unescaped, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return unescaped
}
