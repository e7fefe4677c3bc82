package binx

import (
	"fmt"
	"io"
	"log/slog"
)

// DefaultMaxFrameSize bounds what ReadFrom will buffer from a source.
const DefaultMaxFrameSize int64 = 64 << 20

type options struct {
	registry     *Registry
	resolver     Resolver
	blob         BlobCodec
	logger       *slog.Logger
	hook         ObservabilityHook
	maxFrameSize int64
}

// Option configures a Writer, a Reader or a stream adapter. Options that do not apply to
// the receiving side are ignored.
type Option func(*options) error

func newOptions(opts []Option) (*options, error) {
	o := &options{
		blob:         defaultGob,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		hook:         &NoOpObservabilityHook{},
		maxFrameSize: DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.resolver == nil {
		o.resolver = DefaultResolver()
	}
	return o, nil
}

// WithRegistry supplies the caller registry consulted after the built-in one.
func WithRegistry(r *Registry) Option {
	return func(o *options) error {
		if r == nil {
			return fmt.Errorf("%w: nil registry", ErrInvalidConfiguration)
		}
		o.registry = r
		return nil
	}
}

// WithResolver overrides the default resolver for type names.
func WithResolver(r Resolver) Option {
	return func(o *options) error {
		if r == nil {
			return fmt.Errorf("%w: nil resolver", ErrInvalidConfiguration)
		}
		o.resolver = r
		return nil
	}
}

func WithBlobCodec(c BlobCodec) Option {
	return func(o *options) error {
		if c == nil {
			return fmt.Errorf("%w: nil blob codec", ErrInvalidConfiguration)
		}
		o.blob = c
		return nil
	}
}

// WithBlobCodecName selects a codec registered with RegisterBlobCodec.
func WithBlobCodecName(name string) Option {
	return func(o *options) error {
		c, err := LookupBlobCodec(name)
		if err != nil {
			return err
		}
		o.blob = c
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidConfiguration)
		}
		o.logger = l
		return nil
	}
}

func WithObservabilityHook(h ObservabilityHook) Option {
	return func(o *options) error {
		if h == nil {
			return fmt.Errorf("%w: nil observability hook", ErrInvalidConfiguration)
		}
		o.hook = h
		return nil
	}
}

// WithMaxFrameSize bounds the number of bytes ReadFrom accepts from a source.
func WithMaxFrameSize(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("%w: max frame size must be positive, got %d", ErrInvalidConfiguration, n)
		}
		o.maxFrameSize = n
		return nil
	}
}
