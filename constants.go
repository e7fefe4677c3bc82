package binx

// Environment variable names
const (
	// EnvConfigVersion is the configuration schema version, a semantic version.
	EnvConfigVersion = "BINX_CONFIG_VERSION"

	// EnvBlobCodec names the codec used for the opaque fallback.
	//
	// Default: gob
	EnvBlobCodec = "BINX_BLOB_CODEC"

	// EnvMaxFrameSize bounds the bytes a stream reader accepts, in bytes.
	EnvMaxFrameSize = "BINX_MAX_FRAME_SIZE"

	// EnvLogLevel is one of debug, info, warn, error.
	EnvLogLevel = "BINX_LOG_LEVEL"

	// EnvLogFormat is one of json, text, console.
	EnvLogFormat = "BINX_LOG_FORMAT"

	EnvMetricsNamespace = "BINX_METRICS_NAMESPACE"
)

// Default values
const (
	DefaultConfigVersion    = "1.0.0"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "binx"
)

// SupportedConfigMajor is the configuration schema major version this build understands.
const SupportedConfigMajor = 1
