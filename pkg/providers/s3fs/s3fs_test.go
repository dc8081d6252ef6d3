package s3fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
)

// fakeS3 serves a fixed key space from memory.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	modified  time.Time
	listCalls int
}

func newFakeS3(keys map[string][]byte) *fakeS3 {
	return &fakeS3{
		objects:  keys,
		modified: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeS3) sortedKeys() []string {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)
	maxKeys := int(aws.ToInt32(params.MaxKeys))

	var contents []s3types.Object
	var prefixes []s3types.CommonPrefix
	seen := map[string]bool{}

	for _, key := range f.sortedKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+1]
				if !seen[cp] {
					seen[cp] = true
					prefixes = append(prefixes, s3types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		contents = append(contents, s3types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(f.objects[key]))),
			LastModified: aws.Time(f.modified),
		})
		if maxKeys > 0 && len(contents) >= maxKeys {
			break
		}
	}

	return &s3.ListObjectsV2Output{
		Contents:       contents,
		CommonPrefixes: prefixes,
		KeyCount:       aws.Int32(int32(len(contents) + len(prefixes))),
		IsTruncated:    aws.Bool(false),
	}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(f.modified),
	}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}

	start, end := int64(0), int64(len(data))-1
	if rng := aws.ToString(params.Range); rng != "" {
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
			return nil, fmt.Errorf("bad range %q", rng)
		}
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	var body []byte
	if start <= end {
		body = data[start : end+1]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func bucketFixture() map[string][]byte {
	return map[string][]byte{
		"a.txt":              []byte("hello"),
		"docs/readme.md":     []byte("# readme"),
		"docs/deep/data.bin": bytes.Repeat([]byte{0xAB}, 32),
	}
}

func entryNames(entries []types.EntryDescriptor) map[string]types.EntryKind {
	out := make(map[string]types.EntryKind, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Kind
	}
	return out
}

func TestListRoot(t *testing.T) {
	fs := NewWithClient(newFakeS3(bucketFixture()), Config{Bucket: "b"})

	entries, err := fs.ListDirectory("")
	require.NoError(t, err)
	assert.Equal(t, map[string]types.EntryKind{
		"a.txt": types.KindFile,
		"docs":  types.KindDirectory,
	}, entryNames(entries))
}

func TestListSubdirectory(t *testing.T) {
	fs := NewWithClient(newFakeS3(bucketFixture()), Config{Bucket: "b"})

	entries, err := fs.ListDirectory("docs")
	require.NoError(t, err)
	assert.Equal(t, map[string]types.EntryKind{
		"readme.md": types.KindFile,
		"deep":      types.KindDirectory,
	}, entryNames(entries))
}

func TestListMissingDirectory(t *testing.T) {
	fs := NewWithClient(newFakeS3(bucketFixture()), Config{Bucket: "b"})

	_, err := fs.ListDirectory("nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestListEmptyBucketRoot(t *testing.T) {
	fs := NewWithClient(newFakeS3(nil), Config{Bucket: "b"})

	entries, err := fs.ListDirectory("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrefixScoping(t *testing.T) {
	keys := map[string][]byte{
		"data/a.txt":  []byte("in scope"),
		"other/b.txt": []byte("out of scope"),
	}
	fs := NewWithClient(newFakeS3(keys), Config{Bucket: "b", Prefix: "data"})

	entries, err := fs.ListDirectory("")
	require.NoError(t, err)
	assert.Equal(t, map[string]types.EntryKind{
		"a.txt": types.KindFile,
	}, entryNames(entries))
}

func TestGetMetadata(t *testing.T) {
	fs := NewWithClient(newFakeS3(bucketFixture()), Config{Bucket: "b"})

	meta, err := fs.GetMetadata("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", meta.Name)
	assert.Equal(t, int64(5), meta.Size)
	assert.False(t, meta.IsDirectory())
	assert.False(t, meta.LastWriteTime.IsZero())

	// No object at "docs", but keys live under it.
	meta, err = fs.GetMetadata("docs")
	require.NoError(t, err)
	assert.True(t, meta.IsDirectory())

	meta, err = fs.GetMetadata(`docs\deep\data.bin`)
	require.NoError(t, err)
	assert.Equal(t, int64(32), meta.Size)

	_, err = fs.GetMetadata("absent.txt")
	assert.True(t, errors.IsNotFound(err))
}

func TestGetMetadataRoot(t *testing.T) {
	fs := NewWithClient(newFakeS3(nil), Config{Bucket: "b"})

	meta, err := fs.GetMetadata("")
	require.NoError(t, err)
	assert.True(t, meta.IsDirectory())
}

func TestReadFile(t *testing.T) {
	fs := NewWithClient(newFakeS3(bucketFixture()), Config{Bucket: "b"})

	buf := make([]byte, 4)
	n, err := fs.ReadFile("a.txt", 1, buf)
	require.NoError(t, err)
	assert.Equal(t, "ello", string(buf[:n]))
}

func TestReadFileShortRange(t *testing.T) {
	fs := NewWithClient(newFakeS3(bucketFixture()), Config{Bucket: "b"})

	// Asking past the end of the object yields the available tail.
	buf := make([]byte, 10)
	n, err := fs.ReadFile("a.txt", 3, buf)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "lo", string(buf[:n]))
}

func TestReadFileNotFound(t *testing.T) {
	fs := NewWithClient(newFakeS3(nil), Config{Bucket: "b"})

	_, err := fs.ReadFile("absent.txt", 0, make([]byte, 1))
	assert.True(t, errors.IsNotFound(err))
}

func TestStreamFile(t *testing.T) {
	fs := NewWithClient(newFakeS3(bucketFixture()), Config{Bucket: "b"})

	r, err := fs.StreamFile("docs/readme.md")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "# readme", string(data))

	_, err = fs.StreamFile("absent")
	assert.True(t, errors.IsNotFound(err))
}

func TestListCache(t *testing.T) {
	client := newFakeS3(bucketFixture())
	fs := NewWithClient(client, Config{Bucket: "b", ListCacheTTL: time.Minute})

	_, err := fs.ListDirectory("")
	require.NoError(t, err)
	_, err = fs.ListDirectory("")
	require.NoError(t, err)

	client.mu.Lock()
	calls := client.listCalls
	client.mu.Unlock()
	assert.Equal(t, 1, calls, "second listing should come from the cache")
}

func TestListCacheExpiry(t *testing.T) {
	client := newFakeS3(bucketFixture())
	fs := NewWithClient(client, Config{Bucket: "b", ListCacheTTL: 10 * time.Millisecond})

	_, err := fs.ListDirectory("")
	require.NoError(t, err)
	time.Sleep(25 * time.Millisecond)
	_, err = fs.ListDirectory("")
	require.NoError(t, err)

	client.mu.Lock()
	calls := client.listCalls
	client.mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestListCacheDisabled(t *testing.T) {
	client := newFakeS3(bucketFixture())
	fs := NewWithClient(client, Config{Bucket: "b", ListCacheTTL: -1})

	_, err := fs.ListDirectory("")
	require.NoError(t, err)
	_, err = fs.ListDirectory("")
	require.NoError(t, err)

	client.mu.Lock()
	calls := client.listCalls
	client.mu.Unlock()
	assert.Equal(t, 2, calls)
}
