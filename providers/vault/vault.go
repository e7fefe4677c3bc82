// Package vaultstore keeps binx frames in a HashiCorp Vault KV version 2 mount.
//
// A frame is stored base64-encoded under <mount>/data/<prefix>/<name> together with the
// wire name of its top-level type.
package vaultstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/binx"
	"github.com/hengadev/binx/internal/reliability"
)

var ErrFrameNotFound = errors.New("frame not found")

const (
	DefaultMount  = "secret"
	DefaultPrefix = "binx"

	fieldPayload = "payload"
	fieldType    = "type"
)

// Config holds configuration for the Vault frame store.
type Config struct {
	// Address of the Vault server. Empty uses VAULT_ADDR or the client default.
	Address string

	// Token authenticates requests. Empty uses VAULT_TOKEN.
	Token string

	// Namespace is set for HCP Vault / Vault Enterprise.
	Namespace string

	// Mount is the KV v2 mount. Default: secret
	Mount string

	// Prefix groups the frames below the mount. Default: binx
	Prefix string

	CodecOptions []binx.Option

	// Retry controls how transient Vault failures are retried. Zero fields take the
	// reliability defaults.
	Retry reliability.RetryConfig

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FrameStore reads and writes frames through the Vault logical API.
type FrameStore struct {
	client *api.Client
	mount  string
	prefix string
	opts   []binx.Option
	retry  *reliability.RetryExecutor
	logger *slog.Logger
}

// New creates a Vault client from cfg and wraps it.
func New(cfg Config) (*FrameStore, error) {
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("%w: vault config: %w", binx.ErrInvalidConfiguration, config.Error)
	}
	if cfg.Address != "" {
		config.Address = cfg.Address
	}
	// the store retries on its own
	config.MaxRetries = 0
	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return NewWithClient(client, cfg)
}

// NewWithClient wraps an already configured client.
func NewWithClient(client *api.Client, cfg Config) (*FrameStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil vault client", binx.ErrInvalidConfiguration)
	}
	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = DefaultMount
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", "vault", "mount", mount)
	retry := cfg.Retry
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = func(err error, _ int) bool { return retryable(err) }
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Debug("retrying vault request", "attempt", attempt, "delay", delay, "error", err)
		}
	}
	return &FrameStore{
		client: client,
		mount:  mount,
		prefix: prefix,
		opts:   cfg.CodecOptions,
		retry:  reliability.NewRetryExecutorFromConfig(retry),
		logger: logger,
	}, nil
}

// retryable keeps client errors such as a denied token from being retried.
func retryable(err error) bool {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode < 500 && respErr.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return reliability.IsRetryable(err)
}

func (s *FrameStore) dataPath(name string) string {
	return s.mount + "/data/" + s.prefix + "/" + name
}

func (s *FrameStore) metadataPath(name string) string {
	return s.mount + "/metadata/" + s.prefix + "/" + name
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: invalid frame name %q", binx.ErrInvalidConfiguration, name)
	}
	return nil
}

// Put encodes v and writes it as a new version of name.
func (s *FrameStore) Put(ctx context.Context, name string, v any) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := binx.Marshal(v, s.opts...)
	if err != nil {
		return err
	}
	var typeName string
	if v != nil {
		typeName, _ = binx.TypeName(reflect.TypeOf(v))
		typeName = strings.TrimPrefix(typeName, "*")
	}

	body := map[string]any{
		"data": map[string]any{
			fieldPayload: base64.StdEncoding.EncodeToString(data),
			fieldType:    typeName,
		},
	}
	err = s.retry.Execute(ctx, func(ctx context.Context) error {
		if _, err := s.client.Logical().WriteWithContext(ctx, s.dataPath(name), body); err != nil {
			return &binx.ResourceError{Op: "write " + name, Err: err}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("frame write failed", "name", name, "error", err)
		return err
	}
	s.logger.Debug("frame stored", "name", name, "bytes", len(data))
	return nil
}

// Get reads the latest version of name and decodes it.
func (s *FrameStore) Get(ctx context.Context, name string) (any, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	var secret *api.Secret
	err := s.retry.Execute(ctx, func(ctx context.Context) (err error) {
		secret, err = s.client.Logical().ReadWithContext(ctx, s.dataPath(name))
		if err != nil {
			return &binx.ResourceError{Op: "read " + name, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, name)
	}
	fields, ok := secret.Data["data"].(map[string]any)
	if !ok {
		// deleted versions come back with null data
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, name)
	}
	encoded, ok := fields[fieldPayload].(string)
	if !ok {
		return nil, &binx.ParseError{Detail: "vault secret " + name + " has no payload", Err: binx.ErrTypeMismatch}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &binx.ParseError{Detail: "vault secret " + name, Err: err}
	}
	return binx.Unmarshal(data, s.opts...)
}

// Delete removes name and all of its versions.
func (s *FrameStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return s.retry.Execute(ctx, func(ctx context.Context) error {
		if _, err := s.client.Logical().DeleteWithContext(ctx, s.metadataPath(name)); err != nil {
			return &binx.ResourceError{Op: "delete " + name, Err: err}
		}
		return nil
	})
}

// List returns the frame names below the prefix. Nested folders end with "/".
func (s *FrameStore) List(ctx context.Context) ([]string, error) {
	var secret *api.Secret
	err := s.retry.Execute(ctx, func(ctx context.Context) (err error) {
		secret, err = s.client.Logical().ListWithContext(ctx, s.metadataPath(""))
		if err != nil {
			return &binx.ResourceError{Op: "list", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	raw, _ := secret.Data["keys"].([]any)
	names := make([]string, 0, len(raw))
	for _, k := range raw {
		if name, ok := k.(string); ok {
			names = append(names, strings.TrimPrefix(name, "/"))
		}
	}
	return names, nil
}
