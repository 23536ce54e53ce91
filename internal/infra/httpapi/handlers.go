package httpapi

import (
	"errors"
	"math/big"
	"net/http"

	"attestd/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type verifyRequest struct {
	TargetAddress string `json:"target_address,omitempty"`
}

// rewardRequest defaults to a dry run; submission requires an explicit
// "execute": true so the zero-valued request is side-effect free.
type rewardRequest struct {
	PayloadHash string `json:"payload_hash"`
	Slot        string `json:"slot"`
	Participant string `json:"participant"`
	Amount      string `json:"amount,omitempty"`
	Execute     bool   `json:"execute,omitempty"`
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.verifyUC == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "NOT_CONFIGURED", Message: "verification pipeline unavailable"})
		return
	}
	var req verifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
			return
		}
	}

	verdict, err := s.verifyUC.Execute(c.Request.Context(), domain.AttestationReference{
		TxHash:        c.Param("tx_hash"),
		TargetAddress: req.TargetAddress,
		ChainID:       s.cfg.ChainID,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, verdict)
	case errors.Is(err, domain.ErrReceiptPending):
		// The partial verdict was persisted; the caller can poll.
		c.JSON(http.StatusAccepted, verdict)
	case errors.Is(err, domain.ErrProofMissing), errors.Is(err, domain.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case domain.IsConfigurationError(err):
		c.JSON(http.StatusBadRequest, errorResponse{Code: configErrorCode(err), Message: err.Error()})
	default:
		c.JSON(http.StatusBadGateway, errorResponse{Code: "LEDGER_UNAVAILABLE", Message: err.Error()})
	}
}

// configErrorCode surfaces a specific detail code (e.g. CHAIN_MISMATCH)
// when the configuration error carries one.
func configErrorCode(err error) string {
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	return "BAD_CONFIG"
}

func (s *Server) handleGetReport(c *gin.Context) {
	if s.reports == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "NOT_CONFIGURED", Message: "report store unavailable"})
		return
	}
	verdict, err := s.reports.Get(c.Request.Context(), c.Param("tx_hash"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "STORE_ERROR", Message: err.Error()})
		return
	}
	if verdict == nil {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "no report for attestation"})
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (s *Server) handleListRewards(c *gin.Context) {
	if s.outcomes == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "NOT_CONFIGURED", Message: "outcome store unavailable"})
		return
	}
	outcomes, err := s.outcomes.ListByAttestation(c.Request.Context(), c.Param("tx_hash"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "STORE_ERROR", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

func (s *Server) handleReward(c *gin.Context) {
	if s.rewardUC == nil || s.reports == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "NOT_CONFIGURED", Message: "reward gate unavailable"})
		return
	}
	var req rewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}
	txHash := c.Param("tx_hash")

	verdict, err := s.reports.Get(c.Request.Context(), txHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "STORE_ERROR", Message: err.Error()})
		return
	}
	if verdict == nil {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "attestation has no verification report; verify first"})
		return
	}

	intent := domain.RewardIntent{
		AttestationTxHash: txHash,
		PayloadHash:       req.PayloadHash,
		Slot:              req.Slot,
		Participant:       req.Participant,
	}
	if req.Amount != "" {
		amount, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "amount must be a base-10 integer"})
			return
		}
		intent.Amount = amount
	}

	mode, err := domain.ParseMode(s.cfg.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "BAD_CONFIG", Message: err.Error()})
		return
	}

	outcome, err := s.rewardUC.Execute(c.Request.Context(), *verdict, intent, mode, !req.Execute)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, outcome)
	case errors.Is(err, domain.ErrVerificationNotPassed):
		c.JSON(http.StatusConflict, outcome)
	case errors.Is(err, domain.ErrPendingConfirmation):
		c.JSON(http.StatusAccepted, outcome)
	case errors.Is(err, domain.ErrRejectedByLedger):
		c.JSON(http.StatusBadGateway, outcome)
	case errors.Is(err, domain.ErrSimulationMode):
		c.JSON(http.StatusConflict, errorResponse{Code: "SIMULATION_MODE", Message: "reward execution is disabled outside real mode"})
	default:
		c.JSON(http.StatusBadGateway, errorResponse{Code: "LEDGER_UNAVAILABLE", Message: err.Error()})
	}
}
