package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"attestd/internal/config"
	"attestd/internal/domain"
	"attestd/internal/infra/db"
	"attestd/internal/infra/ledgereth"
	"attestd/internal/infra/policyrego"
	"attestd/internal/infra/proofstore"
	"attestd/internal/infra/ratelimit"
	"attestd/internal/infra/reportfs"
	"attestd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	verifyUC *usecase.VerifyAttestation
	rewardUC *usecase.ExecuteReward

	reports  domain.ReportRepository
	outcomes domain.OutcomeRepository

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration

	initErr error
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

// ServerDeps lets tests substitute the pipeline without an RPC
// endpoint.
type ServerDeps struct {
	Verify      *usecase.VerifyAttestation
	Reward      *usecase.ExecuteReward
	Reports     domain.ReportRepository
	Outcomes    domain.OutcomeRepository
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		r:        r,
		verifyUC: deps.Verify,
		rewardUC: deps.Reward,
		reports:  deps.Reports,
		outcomes: deps.Outcomes,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	if err := s.cfg.Validate(); err != nil {
		s.initErr = err
		return
	}

	ledger, err := ledgereth.Dial(context.Background(), s.cfg.RPCURL, s.cfg.RetryPolicy())
	if err != nil {
		s.initErr = err
		return
	}
	if s.cfg.SubmitterPrivateKey != "" {
		if _, err := ledger.WithSubmitter(s.cfg.SubmitterPrivateKey); err != nil {
			s.initErr = err
			return
		}
	}

	verifier, err := ledgereth.NewVerifier(ledger, s.cfg.VerificationContractAddress)
	if err != nil {
		s.initErr = err
		return
	}

	if s.store != nil && s.store.DB != nil {
		s.reports = db.NewReportRepository(s.store.DB)
		s.outcomes = db.NewOutcomeRepository(s.store.DB)
	} else {
		fsStore := reportfs.New(s.cfg.ReportDir)
		s.reports = fsStore
		s.outcomes = fsStore
	}

	var operator domain.OperatorPolicy
	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyrego.NewEngine(context.Background(), s.cfg.PolicyBundlePath)
		if err != nil {
			s.initErr = err
			return
		}
		operator = engine
	}

	s.verifyUC = &usecase.VerifyAttestation{
		Ledger:                ledger,
		Proofs:                proofstore.New(s.cfg.ProofDir),
		Verifier:              verifier,
		Reports:               s.reports,
		Operator:              operator,
		ExpectedChainID:       s.cfg.ChainID,
		RequiredConfirmations: s.cfg.RequiredConfirmations,
		ExpectedPayloadDigest: s.cfg.ExpectedPayloadDigest,
		StrictIntegrity:       s.cfg.StrictIntegrityCheck,
	}

	if s.cfg.RewardContractAddress != "" {
		rewards, err := ledgereth.NewRewardBinding(ledger, s.cfg.RewardContractAddress)
		if err != nil {
			s.initErr = err
			return
		}
		s.rewardUC = &usecase.ExecuteReward{
			Ledger:                ledger,
			Rewards:               rewards,
			Outcomes:              s.outcomes,
			RequiredConfirmations: s.cfg.RequiredConfirmations,
		}
	}

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(0, nil)
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	v1.Use(s.rateLimitMiddleware())
	{
		v1.POST("/attestations/:tx_hash/verify", s.handleVerify)
		v1.GET("/attestations/:tx_hash/report", s.handleGetReport)
		v1.GET("/attestations/:tx_hash/rewards", s.handleListRewards)
		v1.POST("/attestations/:tx_hash/reward", s.handleReward)
	}

	s.r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "no such route"})
	})
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
			c.Next()
			return
		}
		key := "rl:" + c.ClientIP()
		decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
		if err != nil {
			// Fail open: a broken limiter backend must not take the
			// verification API down with it.
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Code:    "RATE_LIMITED",
				Message: "request budget exhausted",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
