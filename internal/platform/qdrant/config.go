package qdrant

import (
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	envQdrantURL             = "QDRANT_URL"
	envQdrantCollection      = "QDRANT_COLLECTION"
	envQdrantNamespacePrefix = "QDRANT_NAMESPACE_PREFIX"
	envQdrantVectorDim       = "QDRANT_VECTOR_DIM"

	defaultNamespacePrefix = "pd"
)

// Config carries the connection and collection settings for the vector store.
// NamespacePrefix is prepended to every logical namespace so several
// deployments can share one Qdrant collection.
type Config struct {
	URL             string
	Collection      string
	NamespacePrefix string
	VectorDim       int
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorMissingVectorDim  ConfigErrorCode = "missing_vector_dim"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

var configErrorMessages = map[ConfigErrorCode]string{
	ConfigErrorMissingURL:        envQdrantURL + " is required",
	ConfigErrorInvalidURL:        "expected absolute URL like http://qdrant:6333",
	ConfigErrorMissingCollection: envQdrantCollection + " is required",
	ConfigErrorMissingVectorDim:  envQdrantVectorDim + " is required and must be a positive integer",
	ConfigErrorInvalidVectorDim:  "expected positive integer",
}

// ConfigError reports a missing or malformed setting. Value holds the raw
// input when one was present.
type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	msg, ok := configErrorMessages[e.Code]
	if !ok {
		return "invalid qdrant config"
	}
	if e.Value == "" {
		return msg
	}
	return string(e.Code) + ": " + strconv.Quote(e.Value) + "; " + msg
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveConfigFromEnv reads the QDRANT_* variables and validates the result.
func ResolveConfigFromEnv() (Config, error) {
	rawDim := strings.TrimSpace(os.Getenv(envQdrantVectorDim))
	dim := 0
	if rawDim != "" {
		parsed, err := strconv.Atoi(rawDim)
		if err != nil {
			return Config{}, &ConfigError{
				Code:  ConfigErrorInvalidVectorDim,
				Value: rawDim,
				Cause: err,
			}
		}
		dim = parsed
	}

	cfg := Config{
		URL:             strings.TrimSpace(os.Getenv(envQdrantURL)),
		Collection:      strings.TrimSpace(os.Getenv(envQdrantCollection)),
		NamespacePrefix: strings.TrimSpace(os.Getenv(envQdrantNamespacePrefix)),
		VectorDim:       dim,
	}
	if cfg.NamespacePrefix == "" {
		cfg.NamespacePrefix = defaultNamespacePrefix
	}

	if err := ValidateConfig(cfg, rawDim != ""); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig checks a config for use. hasRawVectorDim distinguishes an
// unset QDRANT_VECTOR_DIM from one that parsed to a non-positive value.
func ValidateConfig(cfg Config, hasRawVectorDim bool) error {
	if cfg.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	if !isAbsoluteURL(cfg.URL) {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	if cfg.VectorDim <= 0 {
		if !hasRawVectorDim && cfg.VectorDim == 0 {
			return &ConfigError{Code: ConfigErrorMissingVectorDim}
		}
		return &ConfigError{
			Code:  ConfigErrorInvalidVectorDim,
			Value: strconv.Itoa(cfg.VectorDim),
		}
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}
