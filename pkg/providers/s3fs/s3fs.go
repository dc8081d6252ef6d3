// Package s3fs projects a read-only view of an S3 bucket prefix. Keys are
// mapped to virtual paths with "/" as the object delimiter, so a bucket
// laid out like a file tree enumerates like one. Directory listings are
// cached briefly to keep enumeration-heavy workloads from hammering the
// ListObjectsV2 API.
package s3fs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/winprojfs/winprojfs/pkg/errors"
	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

// Config represents the S3 provider configuration.
type Config struct {
	Bucket string `yaml:"bucket"`

	// Prefix roots the projection at a key prefix instead of the whole
	// bucket. A trailing "/" is implied.
	Prefix string `yaml:"prefix"`

	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	MaxRetries      int    `yaml:"max_retries"`

	// RequestTimeout bounds each S3 call. Zero means no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ListCacheTTL controls how long directory listings are reused.
	// Zero selects the default of 5 seconds; negative disables caching.
	ListCacheTTL time.Duration `yaml:"list_cache_ttl"`
}

const defaultListCacheTTL = 5 * time.Second

// S3API is the subset of the S3 client the provider uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// FS is a read-only provider backed by an S3 bucket.
type FS struct {
	client S3API
	bucket string
	prefix string
	cfg    Config
	cache  *listCache
}

// New creates a provider using the default AWS credential chain, optionally
// overridden by static credentials from the configuration.
func New(ctx context.Context, cfg Config) (*FS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "bucket cannot be empty").
			WithComponent("s3fs")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(pkgerrors.Wrap(err, "loading AWS configuration"),
			errors.ErrCodeConfigLoad, "cannot initialize S3 client").
			WithComponent("s3fs")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a provider over an existing client. Tests use it
// with a fake.
func NewWithClient(client S3API, cfg Config) *FS {
	ttl := cfg.ListCacheTTL
	if ttl == 0 {
		ttl = defaultListCacheTTL
	}
	return &FS{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
		cfg:    cfg,
		cache:  newListCache(ttl),
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.ReplaceAll(prefix, `\`, "/"), "/")
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}

// keyFor maps a virtual path onto an object key under the prefix.
func (f *FS) keyFor(path string) string {
	return f.prefix + strings.ReplaceAll(utils.NormalizeVirtualPath(path), `\`, "/")
}

func (f *FS) callCtx() (context.Context, context.CancelFunc) {
	if f.cfg.RequestTimeout > 0 {
		return context.WithTimeout(context.Background(), f.cfg.RequestTimeout)
	}
	return context.Background(), func() {}
}

// ListDirectory implements types.Provider. One level of the key space is
// listed using "/" as the delimiter: common prefixes become directories and
// objects become files.
func (f *FS) ListDirectory(path string) ([]types.EntryDescriptor, error) {
	path = utils.NormalizeVirtualPath(path)
	if cached, ok := f.cache.get(path); ok {
		return cached, nil
	}

	dirKey := f.keyFor(path)
	if dirKey != "" && !strings.HasSuffix(dirKey, "/") {
		dirKey += "/"
	}

	ctx, cancel := f.callCtx()
	defer cancel()

	var entries []types.EntryDescriptor
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.bucket),
		Prefix:    aws.String(dirKey),
		Delimiter: aws.String("/"),
	}
	for {
		result, err := f.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, f.translateError(err, "ListObjectsV2", path)
		}

		for _, cp := range result.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), dirKey), "/")
			if name == "" {
				continue
			}
			entries = append(entries, types.EntryDescriptor{
				Name: name,
				Kind: types.KindDirectory,
			})
		}
		for _, obj := range result.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), dirKey)
			if name == "" || strings.Contains(name, "/") {
				// The directory marker object, or a key the delimiter
				// should have folded away.
				continue
			}
			entries = append(entries, fileEntry(name, aws.ToInt64(obj.Size), obj.LastModified))
		}

		if !aws.ToBool(result.IsTruncated) {
			break
		}
		input.ContinuationToken = result.NextContinuationToken
	}

	if len(entries) == 0 && path != "" {
		// Distinguish an empty directory from a missing one: without a
		// marker object or children, the prefix does not exist.
		if exists, err := f.prefixExists(ctx, dirKey); err != nil {
			return nil, err
		} else if !exists {
			return nil, errors.Newf(errors.ErrCodeNotFound, "no such directory %q", path).
				WithComponent("s3fs").WithPath(path)
		}
	}

	f.cache.put(path, entries)
	return entries, nil
}

// GetMetadata implements types.Provider. A path is a file if the exact key
// exists, a directory if any key lives under it.
func (f *FS) GetMetadata(path string) (*types.EntryDescriptor, error) {
	path = utils.NormalizeVirtualPath(path)
	if path == "" {
		return &types.EntryDescriptor{Name: ".", Kind: types.KindDirectory}, nil
	}

	ctx, cancel := f.callCtx()
	defer cancel()

	key := f.keyFor(path)
	_, name := utils.ParentAndName(path)

	head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		entry := fileEntry(name, aws.ToInt64(head.ContentLength), head.LastModified)
		return &entry, nil
	}
	if !isNotFound(err) {
		return nil, f.translateError(err, "HeadObject", path)
	}

	// No object at the key; probe for children to detect a directory.
	exists, perr := f.prefixExists(ctx, key+"/")
	if perr != nil {
		return nil, perr
	}
	if exists {
		return &types.EntryDescriptor{Name: name, Kind: types.KindDirectory}, nil
	}
	return nil, errors.Newf(errors.ErrCodeNotFound, "no such entry %q", path).
		WithComponent("s3fs").WithPath(path)
}

// ReadFile implements types.Provider using a ranged GetObject.
func (f *FS) ReadFile(path string, offset int64, dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	path = utils.NormalizeVirtualPath(path)

	ctx, cancel := f.callCtx()
	defer cancel()

	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.keyFor(path)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(dst))-1)),
	})
	if err != nil {
		return 0, f.translateError(err, "GetObject", path)
	}
	defer result.Body.Close()

	n, err := io.ReadFull(result.Body, dst)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		// The range ran past the object; the short read is the answer.
		return n, io.EOF
	}
	if err != nil {
		return n, f.translateError(err, "GetObject", path)
	}
	return n, nil
}

// StreamFile implements types.ReaderProvider: the object body is returned
// as-is so whole-file hydrations take a single GetObject instead of one
// ranged request per chunk.
func (f *FS) StreamFile(path string) (io.ReadCloser, error) {
	path = utils.NormalizeVirtualPath(path)

	// Whole-object downloads can outlive the per-call timeout; they are
	// bounded by the driver's own transfer pacing instead.
	result, err := f.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.keyFor(path)),
	})
	if err != nil {
		return nil, f.translateError(err, "GetObject", path)
	}
	return result.Body, nil
}

// prefixExists reports whether any key lives under the prefix.
func (f *FS) prefixExists(ctx context.Context, prefix string) (bool, error) {
	result, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, f.translateError(err, "ListObjectsV2", prefix)
	}
	return aws.ToInt32(result.KeyCount) > 0, nil
}

func fileEntry(name string, size int64, modified *time.Time) types.EntryDescriptor {
	entry := types.EntryDescriptor{
		Name: name,
		Kind: types.KindFile,
		Size: size,
	}
	if modified != nil {
		entry.LastWriteTime = *modified
		entry.CreationTime = *modified
	}
	return entry
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return pkgerrors.As(err, &noSuchKey) || pkgerrors.As(err, &notFound)
}

func (f *FS) translateError(err error, operation, path string) error {
	if isNotFound(err) {
		return errors.Newf(errors.ErrCodeNotFound, "no such entry %q", path).
			WithComponent("s3fs").WithOperation(operation).WithPath(path).
			WithCause(err)
	}
	return errors.Wrap(err, errors.ErrCodeIoFailure, "S3 request failed").
		WithComponent("s3fs").WithOperation(operation).WithPath(path)
}
