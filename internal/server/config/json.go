package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/educhain/internal/flagx"
	"github.com/dmitrijs2005/educhain/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from zero values so a partial file only overrides
// what it names.
type JsonConfig struct {
	HTTPAddr            *string         `json:"http_addr"`
	GRPCAddr            *string         `json:"grpc_addr"`
	DatabaseDSN         *string         `json:"database_dsn"`
	SessionSecret       *string         `json:"session_secret"`
	SessionTTL          *timex.Duration `json:"session_ttl"`
	SecureCookie        *bool           `json:"secure_cookie"`
	RedisURL            *string         `json:"redis_url"`
	StorageBackend      *string         `json:"storage_backend"`
	S3RootUser          *string         `json:"s3_root_user"`
	S3RootPassword      *string         `json:"s3_root_password"`
	S3Bucket            *string         `json:"s3_bucket"`
	S3Region            *string         `json:"s3_region"`
	S3BaseEndpoint      *string         `json:"s3_base_endpoint"`
	MaxUploadBytes      *int64          `json:"max_upload_bytes"`
	OracleURL           *string         `json:"oracle_url"`
	OracleAPIKey        *string         `json:"oracle_api_key"`
	OracleEnabled       *bool           `json:"oracle_enabled"`
	OracleTimeout       *timex.Duration `json:"oracle_timeout"`
	ConfidenceThreshold *float64        `json:"confidence_threshold"`
	AttestationURL      *string         `json:"attestation_url"`
	AttestationTimeout  *timex.Duration `json:"attestation_timeout"`
	AttestationSecret   *string         `json:"attestation_secret"`
	ChallengeVerifyURL  *string         `json:"challenge_verify_url"`
	ChallengeSecret     *string         `json:"challenge_secret"`
	ChallengeTimeout    *timex.Duration `json:"challenge_timeout"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config (if any) into config.
// An unreadable or malformed file is fatal: the function panics.
func parseJson(config *Config, args []string) {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SessionSecret, c.SessionSecret)
	setDuration(&config.SessionTTL, c.SessionTTL)
	if c.SecureCookie != nil {
		config.SecureCookie = *c.SecureCookie
	}
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.MaxUploadBytes != nil {
		config.MaxUploadBytes = *c.MaxUploadBytes
	}
	setString(&config.OracleURL, c.OracleURL)
	setString(&config.OracleAPIKey, c.OracleAPIKey)
	if c.OracleEnabled != nil {
		config.OracleEnabled = *c.OracleEnabled
	}
	setDuration(&config.OracleTimeout, c.OracleTimeout)
	if c.ConfidenceThreshold != nil {
		config.ConfidenceThreshold = *c.ConfidenceThreshold
	}
	setString(&config.AttestationURL, c.AttestationURL)
	setDuration(&config.AttestationTimeout, c.AttestationTimeout)
	setString(&config.AttestationSecret, c.AttestationSecret)
	setString(&config.ChallengeVerifyURL, c.ChallengeVerifyURL)
	setString(&config.ChallengeSecret, c.ChallengeSecret)
	setDuration(&config.ChallengeTimeout, c.ChallengeTimeout)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
