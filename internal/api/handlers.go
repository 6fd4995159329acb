package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/naming"
	"pepu-name-service/internal/registry"
	"pepu-name-service/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type checkDomainResponse struct {
	Exists bool `json:"exists"`
}

type verifyPaymentRequest struct {
	Wallet string `json:"wallet"`
	Name   string `json:"name"`
	TxHash string `json:"txHash"`
}

type verifyPaymentResponse struct {
	Success bool       `json:"success"`
	Name    string     `json:"name,omitempty"`
	TxHash  string     `json:"txHash,omitempty"`
	Expiry  *time.Time `json:"expiry,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type domainResponse struct {
	Name      string     `json:"name"`
	NameHash  string     `json:"nameHash"`
	Owner     string     `json:"owner"`
	TxHash    string     `json:"txHash"`
	Amount    string     `json:"amount,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	Expiry    *time.Time `json:"expiry,omitempty"`
}

type ownerResponse struct {
	Wallet string          `json:"wallet"`
	Domain *domainResponse `json:"domain"`
}

type statsResponse struct {
	registry.Stats
	Price string `json:"price"`
	Asset string `json:"asset"`
}

func toDomainResponse(rec *domain.DomainRecord) *domainResponse {
	return &domainResponse{
		Name:      rec.Name,
		NameHash:  rec.NameHash,
		Owner:     rec.Owner,
		TxHash:    rec.TransactionHash,
		Amount:    rec.Amount,
		CreatedAt: rec.CreatedAt,
		Expiry:    rec.Expiry,
	}
}

// checkDomain answers whether a paid record exists. A missing name is
// reported as not existing.
func (s *Server) checkDomain(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusOK, checkDomainResponse{Exists: false})
		return
	}

	exists, err := s.reg.Exists(c.Request.Context(), name)
	if registry.Classify(err) == registry.ClassInput {
		c.JSON(http.StatusOK, checkDomainResponse{Exists: false})
		return
	}
	if err != nil {
		s.internalError(c, "check domain failed", err)
		return
	}
	c.JSON(http.StatusOK, checkDomainResponse{Exists: exists})
}

func (s *Server) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, verifyPaymentResponse{Error: "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	var (
		rec *domain.DomainRecord
		err error
	)
	if strings.TrimSpace(req.TxHash) == "" {
		rec, err = s.reg.RegisterWithPolling(ctx, req.Name, req.Wallet)
	} else {
		rec, err = s.reg.RegisterIfEligible(ctx, req.Name, req.Wallet, req.TxHash)
	}
	if err != nil {
		status, msg := s.registrationError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("registration failed",
				zap.String("request_id", GetRequestID(c)),
				zap.String("name", req.Name),
				zap.String("wallet", req.Wallet),
				zap.Error(err))
		}
		c.JSON(status, verifyPaymentResponse{Error: msg})
		return
	}

	c.JSON(http.StatusOK, verifyPaymentResponse{
		Success: true,
		Name:    rec.Name,
		TxHash:  rec.TransactionHash,
		Expiry:  rec.Expiry,
	})
}

func (s *Server) availability(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Name is required"})
		return
	}

	res, err := s.reg.Availability(c.Request.Context(), name)
	if err != nil {
		s.internalError(c, "availability check failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getDomain(c *gin.Context) {
	rec, err := s.reg.Lookup(c.Request.Context(), c.Param("name"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toDomainResponse(rec))
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "Domain not found"})
	case registry.Classify(err) == registry.ClassInput:
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Name is required"})
	default:
		s.internalError(c, "domain lookup failed", err)
	}
}

func (s *Server) ownerDomain(c *gin.Context) {
	wallet := c.Param("wallet")
	rec, err := s.reg.OwnedBy(c.Request.Context(), wallet)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, ownerResponse{Wallet: strings.ToLower(wallet), Domain: toDomainResponse(rec)})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusOK, ownerResponse{Wallet: strings.ToLower(wallet)})
	case registry.Classify(err) == registry.ClassInput:
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid wallet address"})
	default:
		s.internalError(c, "owner lookup failed", err)
	}
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.reg.Stats(c.Request.Context())
	if err != nil {
		s.internalError(c, "stats failed", err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{Stats: st, Price: s.cfg.Price, Asset: s.cfg.Asset})
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, zap.String("request_id", GetRequestID(c)), zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

// registrationError maps a registry error to a status and a message
// safe to show to the user.
func (s *Server) registrationError(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrMissingInput):
		return http.StatusBadRequest, "Wallet and name are required"
	case errors.Is(err, registry.ErrPollingDisabled):
		return http.StatusBadRequest, "Transaction hash is required"
	case errors.Is(err, registry.ErrInvalidName):
		return http.StatusBadRequest, "Invalid domain name: " + nameReason(err)
	case errors.Is(err, registry.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid wallet address or transaction hash"

	case errors.Is(err, registry.ErrNameTaken):
		return http.StatusConflict, "Domain is no longer available"
	case errors.Is(err, registry.ErrConflict):
		return http.StatusConflict, "Registration conflict, try again"
	case errors.Is(err, registry.ErrWalletHasDomain):
		return http.StatusConflict, "Wallet has already registered a domain"
	case errors.Is(err, registry.ErrTransactionUsed):
		return http.StatusConflict, "Transaction has already been used"
	case errors.Is(err, registry.ErrRegistrationClosed):
		return http.StatusConflict, "Registration is closed"

	case errors.Is(err, registry.ErrPaymentNotFound):
		return http.StatusPaymentRequired, fmt.Sprintf(
			"Payment not found within time limit. Please ensure you sent exactly %s %s to the treasury wallet.",
			s.cfg.Price, s.cfg.Asset)
	case errors.Is(err, registry.ErrPaymentNotVerified):
		return http.StatusPaymentRequired, "Payment could not be verified"

	case errors.Is(err, registry.ErrStoreFailed):
		return http.StatusInternalServerError, "Failed to store domain registration"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func nameReason(err error) string {
	for _, e := range []error{naming.ErrEmpty, naming.ErrTooLong, naming.ErrHyphenEdge, naming.ErrCharset, naming.ErrBanned} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "invalid format"
}
