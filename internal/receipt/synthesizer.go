// Package receipt generates the artifact pair for a receipt request: a
// primary XLSX rendered from the template and a durable PDF produced by an
// external converter, cached under a deterministic key.
package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adaeze-umeh/donation-receipts/internal/billing"
	"github.com/adaeze-umeh/donation-receipts/internal/common"
)

const (
	// PrimaryExt is the editable format extension.
	PrimaryExt = ".xlsx"
	// DurableExt is the distributable format extension.
	DurableExt = ".pdf"
)

// Key derives the deterministic cache key for a receipt request. The key
// is identity+window only: content changes for the same payer and window
// (a corrected note, a different issuer) do not produce a new key, so an
// existing artifact is served as-is. That staleness is a deliberate policy.
func Key(req billing.ReceiptRequest) string {
	return fmt.Sprintf("receipt-%s-%s-%s", req.DonatorID, req.StartDate, req.EndDate)
}

// Artifact describes one generated pair for the index.
type Artifact struct {
	Key         string
	PayerID     string
	PrimaryPath string
	DurablePath string
}

// Recorder persists artifact references for lifecycle listing.
type Recorder interface {
	Record(ctx context.Context, art Artifact) error
}

// Synthesizer fills the template and converts the result to the durable
// format. Concurrent calls for the same key are collapsed into one
// generation; the rest wait for its outcome.
type Synthesizer struct {
	dir          string
	templatePath string
	urlPrefix    string
	converter    common.ConverterConfig
	runner       Runner
	recorder     Recorder
	logger       *zap.Logger
	group        singleflight.Group
}

// NewSynthesizer wires a synthesizer. recorder may be nil when no index is
// kept.
func NewSynthesizer(cfg common.ArtifactsConfig, conv common.ConverterConfig, runner Runner, recorder Recorder, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Synthesizer{
		dir:          cfg.Dir,
		templatePath: cfg.TemplatePath,
		urlPrefix:    cfg.URLPrefix,
		converter:    conv,
		runner:       runner,
		recorder:     recorder,
		logger:       logger,
	}
}

// Synthesize returns the durable artifact URL for the request, generating
// the pair if the durable file does not already exist.
func (s *Synthesizer) Synthesize(ctx context.Context, req billing.ReceiptRequest) (string, error) {
	key := Key(req)
	// The flight may be serving waiters beyond the caller that started it,
	// so it must not die with that caller's context. The converter timeout
	// still bounds the run.
	genCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.generate(genCtx, key, req)
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.logger.Debug("receipt.synthesize.shared", zap.String("key", key))
	}
	return v.(string), nil
}

func (s *Synthesizer) generate(ctx context.Context, key string, req billing.ReceiptRequest) (string, error) {
	primary := filepath.Join(s.dir, key+PrimaryExt)
	durable := filepath.Join(s.dir, key+DurableExt)
	url := s.urlPrefix + "/" + key + DurableExt

	// An existing durable file is a complete artifact; the primary is not
	// required for the hit to be valid.
	if st, err := os.Stat(durable); err == nil && !st.IsDir() {
		s.logger.Debug("receipt.synthesize.cache_hit", zap.String("key", key))
		return url, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create artifact dir: %v", common.ErrConversion, err)
	}

	if err := Render(s.templatePath, req, primary); err != nil {
		return "", err
	}

	if err := s.convert(ctx, primary); err != nil {
		// Leave nothing half-made behind a failed conversion.
		_ = os.Remove(primary)
		_ = os.Remove(durable)
		return "", err
	}

	if _, err := os.Stat(durable); err != nil {
		_ = os.Remove(primary)
		return "", fmt.Errorf("%w: converter produced no output for %s", common.ErrConversion, key)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, Artifact{
			Key:         key,
			PayerID:     req.DonatorID,
			PrimaryPath: primary,
			DurablePath: durable,
		}); err != nil {
			// The files are the source of truth; reconcile picks this up.
			s.logger.Warn("receipt.synthesize.index_record_failed",
				zap.String("key", key), zap.Error(err))
		}
	}

	s.logger.Info("receipt.synthesize.generated",
		zap.String("key", key),
		zap.Int("lines", len(req.Items)),
	)
	return url, nil
}

func (s *Synthesizer) convert(ctx context.Context, primary string) error {
	if s.converter.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.converter.Timeout)
		defer cancel()
	}

	_, stderr, err := s.runner.Run(ctx, s.converter.Binary,
		"--headless", "--convert-to", "pdf", "--outdir", s.dir, primary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s",
			common.ErrConversion, s.converter.Binary, err, truncate(string(stderr), 2<<10))
	}
	return nil
}
