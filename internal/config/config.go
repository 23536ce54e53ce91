package config

import (
	"os"
	"strconv"
	"time"

	"attestd/internal/domain"
)

type Config struct {
	RPCURL  string
	ChainID uint64

	RequiredConfirmations       uint64
	AttestationContractAddress  string
	VerificationContractAddress string
	RewardContractAddress       string

	ExpectedPayloadDigest string
	StrictIntegrityCheck  bool
	Mode                  string

	SubmitterPrivateKey string

	ProofDir  string
	ReportDir string

	PostgresDSN string
	HTTPAddr    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests      int
	RateLimitWindowSeconds int

	PolicyBundlePath string

	RPCMaxAttempts     int
	RPCRetryIntervalMS int
	RPCRetryBackoff    float64
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		RPCURL:                      os.Getenv("RPC_URL"),
		ChainID:                     envUint64Default("CHAIN_ID", 0),
		RequiredConfirmations:       envUint64Default("REQUIRED_CONFIRMATIONS", 12),
		AttestationContractAddress:  os.Getenv("ATTESTATION_CONTRACT_ADDRESS"),
		VerificationContractAddress: os.Getenv("VERIFICATION_CONTRACT_ADDRESS"),
		RewardContractAddress:       os.Getenv("REWARD_CONTRACT_ADDRESS"),
		ExpectedPayloadDigest:       os.Getenv("EXPECTED_PAYLOAD_DIGEST"),
		StrictIntegrityCheck:        envBoolDefault("STRICT_INTEGRITY_CHECK", false),
		Mode:                        envDefault("MODE", string(domain.ModeReal)),
		SubmitterPrivateKey:         os.Getenv("SUBMITTER_PRIVATE_KEY"),
		ProofDir:                    envDefault("PROOF_DIR", "proofs"),
		ReportDir:                   envDefault("REPORT_DIR", "reports"),
		PostgresDSN:                 os.Getenv("POSTGRES_DSN"),
		HTTPAddr:                    addr,
		RedisAddr:                   os.Getenv("REDIS_ADDR"),
		RedisPassword:               os.Getenv("REDIS_PASSWORD"),
		RedisDB:                     envIntDefault("REDIS_DB", 0),
		RateLimitRequests:           envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:      envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		PolicyBundlePath:            os.Getenv("POLICY_BUNDLE_PATH"),
		RPCMaxAttempts:              envIntDefault("RPC_MAX_ATTEMPTS", 3),
		RPCRetryIntervalMS:          envIntDefault("RPC_RETRY_INTERVAL_MS", 500),
		RPCRetryBackoff:             envFloatDefault("RPC_RETRY_BACKOFF", 2.0),
	}
}

// Validate checks the inputs every pipeline entry point needs. The
// reward gate additionally requires RewardContractAddress, checked at
// its own entry point.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return &domain.ConfigurationError{Field: "RPC_URL", Reason: "required"}
	}
	if c.ChainID == 0 {
		return &domain.ConfigurationError{Field: "CHAIN_ID", Reason: "required"}
	}
	if c.AttestationContractAddress == "" {
		return &domain.ConfigurationError{Field: "ATTESTATION_CONTRACT_ADDRESS", Reason: "required"}
	}
	if c.VerificationContractAddress == "" {
		return &domain.ConfigurationError{Field: "VERIFICATION_CONTRACT_ADDRESS", Reason: "required"}
	}
	if _, err := domain.ParseMode(c.Mode); err != nil {
		return err
	}
	return nil
}

func (c Config) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts: c.RPCMaxAttempts,
		Interval:    time.Duration(c.RPCRetryIntervalMS) * time.Millisecond,
		Backoff:     c.RPCRetryBackoff,
	}
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envUint64Default(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
