package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adaeze-umeh/donation-receipts/internal/billing"
	"github.com/adaeze-umeh/donation-receipts/internal/common"
	"github.com/adaeze-umeh/donation-receipts/internal/ledger"
	"github.com/adaeze-umeh/donation-receipts/internal/notify"
	"github.com/adaeze-umeh/donation-receipts/internal/search"
)

func (s *Server) handleSearchCustomers(c *gin.Context) {
	filter := search.Filter{
		First: c.Query("first"),
		Last:  c.Query("last"),
		Email: c.Query("email"),
		Phone: c.Query("phone"),
		Mode:  search.ParseMode(c.Query("searchType")),
	}

	payers, err := s.ledger.SearchPayers(c.Request.Context(), filter.RemoteFilter())
	if err != nil {
		s.failUpstream(c, err)
		return
	}

	c.JSON(http.StatusOK, search.Match(payers, filter))
}

func (s *Server) handleOrders(c *gin.Context) {
	payerID := c.Query("customer_id")
	if payerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id is required"})
		return
	}

	txns, err := s.ledger.ListTransactions(c.Request.Context(), payerID)
	if err != nil {
		s.failUpstream(c, err)
		return
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}
	c.JSON(http.StatusOK, txns)
}

type generateRequest struct {
	DonatorID   string `json:"donator_id"`
	Donator     string `json:"donator"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	IssuedBy    string `json:"issued_by"`
	Note        string `json:"note"`
}

func (s *Server) handleGenerateReceipt(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if err := validateJSON(s.genSchema, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}

	txns, err := s.ledger.ListTransactions(c.Request.Context(), req.DonatorID)
	if err != nil {
		s.failUpstream(c, err)
		return
	}

	payer := ledger.Payer{
		ID:           req.DonatorID,
		GivenName:    req.Donator,
		EmailAddress: req.Email,
		PhoneNumber:  req.PhoneNumber,
	}
	receiptReq := billing.Aggregate(payer, txns, billing.Options{
		WindowStart: req.StartDate,
		WindowEnd:   req.EndDate,
		IssuedBy:    req.IssuedBy,
		Note:        req.Note,
	})

	url, err := s.synth.Synthesize(c.Request.Context(), receiptReq)
	if err != nil {
		s.logger.Error("server.generate_failed",
			zap.String("req_id", common.RequestIDFromContext(c.Request.Context())),
			zap.String("donator_id", req.DonatorID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PDF", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleListInvoices(c *gin.Context) {
	urls, err := s.artifacts.List(c.Request.Context(), c.Param("donatorId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read artifact index", "detail": err.Error()})
		return
	}
	if urls == nil {
		urls = []string{}
	}
	c.JSON(http.StatusOK, urls)
}

func (s *Server) handleDeleteInvoice(c *gin.Context) {
	err := s.artifacts.Delete(c.Request.Context(), c.Param("base"))
	if err != nil {
		var partial *common.PartialDeleteError
		if errors.As(err, &partial) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  "Failed to delete some files",
				"detail": partial.Failed,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type sendEmailRequest struct {
	From          string   `json:"from"`
	To            []string `json:"to"`
	Cc            []string `json:"cc"`
	EmailOption   string   `json:"email_option"`
	CustomerEmail string   `json:"customer_email"`
	CustomEmail   string   `json:"custom_email"`
	Subject       string   `json:"subject"`
	Text          string   `json:"text"`
	HTML          string   `json:"html"`
	AttachmentURL string   `json:"attachment_url"`
}

func (s *Server) handleSendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}

	to, cc := req.To, req.Cc
	if req.EmailOption != "" {
		// Recipient lists are composed here, not by the caller, when an
		// option is given.
		to, cc = notify.ComposeRecipients(
			notify.RecipientOption(req.EmailOption), req.CustomerEmail, req.CustomEmail)
	}

	msg := notify.Message{
		FromLabel:      req.From,
		To:             to,
		Cc:             cc,
		Subject:        req.Subject,
		Text:           req.Text,
		HTML:           req.HTML,
		AttachmentPath: s.resolveAttachment(req.AttachmentURL),
	}
	if err := s.mailer.Send(c.Request.Context(), msg); err != nil {
		s.logger.Warn("server.send_email_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send email", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// resolveAttachment maps an artifact URL (absolute or service-relative)
// onto its file inside the artifact directory. Only the base name is
// honored so a crafted URL cannot reach outside the directory.
func (s *Server) resolveAttachment(url string) string {
	if strings.TrimSpace(url) == "" {
		return ""
	}
	return filepath.Join(s.artifactDir, path.Base(url))
}

func (s *Server) failUpstream(c *gin.Context, err error) {
	s.logger.Warn("server.upstream_query_failed",
		zap.String("req_id", common.RequestIDFromContext(c.Request.Context())),
		zap.Error(err),
	)
	status := http.StatusInternalServerError
	if errors.Is(err, common.ErrUpstreamQuery) {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": "remote query failed", "detail": err.Error()})
}
