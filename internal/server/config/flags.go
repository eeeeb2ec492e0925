package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/educhain/internal/flagx"
)

var serverFlags = []string{"-a", "-G", "-d", "-s", "-t", "-r", "-S", "-u", "-p", "-b", "-g", "-e", "-o", "-k", "-T", "-x", "-y", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-G string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   session signing secret
//	-t int      session validity, minutes
//	-r string   Redis URL for sessions and verification locks
//	-S string   storage backend: s3 or memory
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   verification oracle URL
//	-k string   verification oracle API key
//	-T float    acceptance confidence threshold in [0,1]
//	-x string   attestation ledger URL (empty selects the local ledger)
//	-y string   challenge provider secret
//	-l string   log level
//
// Unknown flags are filtered out first with flagx.FilterArgs so other
// components may define their own. A malformed value panics.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to serve HTTP")
	fs.StringVar(&config.GRPCAddr, "G", config.GRPCAddr, "address and port to serve gRPC health")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session signing secret")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session validity (in minutes)")

	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.StorageBackend, "S", config.StorageBackend, "storage backend (s3|memory)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.OracleURL, "o", config.OracleURL, "verification oracle URL")
	fs.StringVar(&config.OracleAPIKey, "k", config.OracleAPIKey, "verification oracle API key")
	fs.Float64Var(&config.ConfidenceThreshold, "T", config.ConfidenceThreshold, "confidence threshold")
	fs.StringVar(&config.AttestationURL, "x", config.AttestationURL, "attestation ledger URL")
	fs.StringVar(&config.ChallengeSecret, "y", config.ChallengeSecret, "challenge provider secret")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
}
