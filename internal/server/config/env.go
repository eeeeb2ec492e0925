package config

import (
	"strconv"
	"time"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// parseEnv overlays EDUCHAIN_* environment variables. Values that fail to
// parse are ignored and the previous value is kept.
func parseEnv(config *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("EDUCHAIN_HTTP_ADDR", &config.HTTPAddr)
	str("EDUCHAIN_GRPC_ADDR", &config.GRPCAddr)
	str("EDUCHAIN_DATABASE_DSN", &config.DatabaseDSN)
	str("EDUCHAIN_SESSION_SECRET", &config.SessionSecret)
	dur("EDUCHAIN_SESSION_TTL", &config.SessionTTL)
	if v, ok := lookup("EDUCHAIN_SECURE_COOKIE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SecureCookie = b
		}
	}
	str("EDUCHAIN_REDIS_URL", &config.RedisURL)
	str("EDUCHAIN_STORAGE_BACKEND", &config.StorageBackend)
	str("EDUCHAIN_S3_ROOT_USER", &config.S3RootUser)
	str("EDUCHAIN_S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("EDUCHAIN_S3_BUCKET", &config.S3Bucket)
	str("EDUCHAIN_S3_REGION", &config.S3Region)
	str("EDUCHAIN_S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	if v, ok := lookup("EDUCHAIN_MAX_UPLOAD_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxUploadBytes = n
		}
	}
	str("EDUCHAIN_ORACLE_URL", &config.OracleURL)
	str("EDUCHAIN_ORACLE_API_KEY", &config.OracleAPIKey)
	if v, ok := lookup("EDUCHAIN_ORACLE_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.OracleEnabled = b
		}
	}
	dur("EDUCHAIN_ORACLE_TIMEOUT", &config.OracleTimeout)
	if v, ok := lookup("EDUCHAIN_CONFIDENCE_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.ConfidenceThreshold = f
		}
	}
	str("EDUCHAIN_ATTESTATION_URL", &config.AttestationURL)
	dur("EDUCHAIN_ATTESTATION_TIMEOUT", &config.AttestationTimeout)
	str("EDUCHAIN_ATTESTATION_SECRET", &config.AttestationSecret)
	str("EDUCHAIN_CHALLENGE_VERIFY_URL", &config.ChallengeVerifyURL)
	str("EDUCHAIN_CHALLENGE_SECRET", &config.ChallengeSecret)
	dur("EDUCHAIN_CHALLENGE_TIMEOUT", &config.ChallengeTimeout)
	str("EDUCHAIN_LOG_LEVEL", &config.LogLevel)
}
