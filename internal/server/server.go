// Package server exposes the engine's caller-facing operations as an HTTP
// JSON API and serves the artifact directory so returned artifact URLs
// resolve.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/adaeze-umeh/donation-receipts/internal/billing"
	"github.com/adaeze-umeh/donation-receipts/internal/common"
	"github.com/adaeze-umeh/donation-receipts/internal/ledger"
	"github.com/adaeze-umeh/donation-receipts/internal/notify"
)

// Ledger is the slice of the record-store client the handlers use.
type Ledger interface {
	SearchPayers(ctx context.Context, filter ledger.CustomerFilter) ([]ledger.Payer, error)
	ListTransactions(ctx context.Context, payerID string) ([]ledger.Transaction, error)
}

// Synthesizer generates (or re-serves) the artifact for a receipt request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req billing.ReceiptRequest) (string, error)
}

// Artifacts is the lifecycle manager surface.
type Artifacts interface {
	List(ctx context.Context, payerID string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Dispatcher hands a message to the outbound transport.
type Dispatcher interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Server is the HTTP front of the receipt engine.
type Server struct {
	ledger    Ledger
	synth     Synthesizer
	artifacts Artifacts
	mailer    Dispatcher

	artifactDir string
	genSchema   *jsonschema.Schema
	router      *gin.Engine
	logger      *zap.Logger
}

// New wires the router. The artifact directory is served under the
// configured URL prefix.
func New(l Ledger, s Synthesizer, a Artifacts, d Dispatcher, cfg common.ArtifactsConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := compileSchema(buildGenerateSchema())
	if err != nil {
		return nil, err
	}

	srv := &Server{
		ledger:      l,
		synth:       s,
		artifacts:   a,
		mailer:      d,
		artifactDir: cfg.Dir,
		genSchema:   schema,
		router:      gin.Default(),
		logger:      logger,
	}

	srv.router.Use(requestID())

	srv.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := srv.router.Group("/api")
	{
		api.GET("/customers/search", srv.handleSearchCustomers)
		api.GET("/orders", srv.handleOrders)
		api.POST("/generate-donation-receipt", srv.handleGenerateReceipt)
		api.GET("/invoices/:donatorId", srv.handleListInvoices)
		api.DELETE("/invoices/:base", srv.handleDeleteInvoice)
		api.POST("/send-email", srv.handleSendEmail)
	}

	srv.router.Static(cfg.URLPrefix, cfg.Dir)

	return srv, nil
}

// Handler returns the root http.Handler for serving.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestID tags every request so engine logs for one call correlate.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := uuid.New().String()
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-Id", rid)
		c.Next()
	}
}
