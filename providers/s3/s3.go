// Package s3bucket stores binx frames as S3 objects.
//
// Frames are streamed into PutObject through a pipe-backed io.WriteCloser, so they can
// be fed to binx.WriteTo or a binx.StreamWriter directly, and read back with GetObject
// into binx.ReadFrom.
package s3bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/hengadev/binx"
	"github.com/hengadev/binx/internal/reliability"
)

// ContentType is set on every uploaded frame object.
const ContentType = "application/x-binx"

// KeySuffix is appended to generated object keys.
const KeySuffix = ".binx"

// AWSS3Uploader defines the method used to upload to S3
type AWSS3Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AWSS3Downloader defines the method used to fetch objects from S3
type AWSS3Downloader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client is the subset of *s3.Client the store needs (allows mocking).
type Client interface {
	AWSS3Uploader
	AWSS3Downloader
}

// Config holds configuration for the S3 frame store.
type Config struct {
	// Bucket receives the frame objects. Required.
	Bucket string

	// Prefix is prepended to generated keys, e.g. "frames/".
	Prefix string

	// Region is the AWS region (e.g., "us-east-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string

	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config

	// Logger receives upload and download events. Defaults to slog.Default().
	Logger *slog.Logger

	// CodecOptions are passed to every binx writer and reader the store creates.
	CodecOptions []binx.Option

	// Retry controls how failed downloads are retried. Uploads stream through a pipe
	// and are never retried.
	Retry reliability.RetryConfig
}

// FrameStore reads and writes binx frames in an S3 bucket.
type FrameStore struct {
	client Client
	bucket string
	prefix string
	logger *slog.Logger
	opts   []binx.Option
	retry  *reliability.RetryExecutor
}

// New creates a frame store backed by a real S3 client.
//
// Usage:
//
//	store, err := s3bucket.New(ctx, s3bucket.Config{Bucket: "frames", Region: "eu-west-3"})
//	key, err := store.Put(ctx, order)
//	v, err := store.Get(ctx, key)
func New(ctx context.Context, cfg Config) (*FrameStore, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", binx.ErrInvalidConfiguration, err)
		}
	}
	return NewWithClient(s3.NewFromConfig(awsConfig), cfg)
}

// NewWithClient creates a frame store around an existing client.
func NewWithClient(client Client, cfg Config) (*FrameStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil S3 client", binx.ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("%w: S3 bucket is required", binx.ErrInvalidConfiguration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := cfg.Retry
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = func(err error, _ int) bool { return retryable(err) }
	}
	return &FrameStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With("provider", "s3", "bucket", cfg.Bucket),
		opts:   cfg.CodecOptions,
		retry:  reliability.NewRetryExecutorFromConfig(retry),
	}, nil
}

// NewKey returns a fresh object key under the configured prefix.
func (s *FrameStore) NewKey() string {
	return s.prefix + uuid.New().String() + KeySuffix
}

// Put encodes v as one frame under a generated key and returns the key.
func (s *FrameStore) Put(ctx context.Context, v any) (string, error) {
	key := s.NewKey()
	if err := s.PutKey(ctx, key, v); err != nil {
		return "", err
	}
	return key, nil
}

// PutKey encodes v as one frame under key, replacing any existing object.
func (s *FrameStore) PutKey(ctx context.Context, key string, v any) error {
	w, err := createS3FileWriter(ctx, s.client, s.bucket, key, s.logger)
	if err != nil {
		return err
	}
	if err := binx.WriteTo(w, v, s.opts...); err != nil {
		if !binx.IsResourceError(err) {
			// nothing was written; drop the upload instead of storing an empty object
			w.abort(err)
		}
		return err
	}
	return nil
}

// Get fetches key and decodes the single frame it holds.
func (s *FrameStore) Get(ctx context.Context, key string) (any, error) {
	r, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	v, err := r.Read()
	if err != nil {
		return nil, err
	}
	if r.More() {
		return nil, &binx.ParseError{Offset: r.Offset(), Detail: "trailing bytes after frame in " + key, Err: binx.ErrBadTag}
	}
	return v, nil
}

// Open fetches key and returns a reader positioned on its first frame. Objects written
// through NewWriter may hold several frames.
func (s *FrameStore) Open(ctx context.Context, key string) (*binx.Reader, error) {
	var out *s3.GetObjectOutput
	err := s.retry.Execute(ctx, func(ctx context.Context) (err error) {
		out, err = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return &binx.ResourceError{Op: "get " + key, Err: err}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("get object failed", "key", key, "error", err)
		return nil, err
	}
	r, err := binx.ReadFrom(out.Body, s.opts...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("object fetched", "key", key, "bytes", r.Remaining())
	return r, nil
}

// retryable reports whether a download failure may succeed on another attempt.
func retryable(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return false
	}
	return reliability.IsRetryable(err)
}

// NewWriter opens a streaming upload of key. Bytes written to it flow into PutObject;
// Close waits for the upload to finish and reports its error.
func (s *FrameStore) NewWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := createS3FileWriter(ctx, s.client, s.bucket, key, s.logger)
	if err != nil {
		return nil, err
	}
	return w, nil
}

type s3Writer struct {
	writer *io.PipeWriter
	reader *io.PipeReader
	done   chan error
	cancel context.CancelFunc
	closed bool
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	return w.writer.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	// Closing the writer signals EOF to the upload; only then is it safe to cancel.
	err := w.writer.Close()
	uploadErr := <-w.done
	w.cancel()
	return errors.Join(err, uploadErr, w.reader.Close())
}

// abort fails the upload with cause and waits for it to stop.
func (w *s3Writer) abort(cause error) {
	if w.closed {
		return
	}
	w.closed = true
	w.writer.CloseWithError(cause)
	<-w.done
	w.cancel()
}

func createS3FileWriter(ctx context.Context, s3Client AWSS3Uploader, bucket, key string, logger *slog.Logger) (*s3Writer, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty object key", binx.ErrInvalidConfiguration)
	}
	reader, writer := io.Pipe()
	uploadCtx, cancel := context.WithCancel(ctx)

	w := &s3Writer{
		writer: writer,
		reader: reader,
		done:   make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic during upload: %v", r)
				logger.Error("recovered from panic in S3 upload", "key", key, "panic", r)
				reader.CloseWithError(err)
				w.done <- err
			}
		}()
		_, err := s3Client.PutObject(uploadCtx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        reader,
			ContentType: aws.String(ContentType),
		})
		if err != nil {
			logger.Warn("upload failed", "key", key, "error", err)
			// unblock the writer
			reader.CloseWithError(err)
			w.done <- err
			return
		}
		logger.Debug("object uploaded", "key", key)
		reader.Close()
		w.done <- nil
	}()

	return w, nil
}
