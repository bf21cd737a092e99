package artifact

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/adaeze-umeh/donation-receipts/internal/common"
	"github.com/adaeze-umeh/donation-receipts/internal/receipt"
)

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeKey strips every character outside [A-Za-z0-9_-]. Hostile input
// loses its path-traversal characters rather than being rejected, so file
// resolution can never escape the artifact directory.
func SanitizeKey(key string) string {
	return keySanitizer.ReplaceAllString(key, "")
}

// Manager keeps the artifact directory and the index consistent.
type Manager struct {
	dir       string
	urlPrefix string
	index     *Index
	logger    *zap.Logger
}

// NewManager wires a lifecycle manager over the artifact directory.
func NewManager(cfg common.ArtifactsConfig, index *Index, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dir:       cfg.Dir,
		urlPrefix: cfg.URLPrefix,
		index:     index,
		logger:    logger,
	}
}

// Record implements receipt.Recorder: a freshly generated pair lands in
// the index.
func (m *Manager) Record(ctx context.Context, art receipt.Artifact) error {
	return m.index.Upsert(ctx, Record{
		Key:         art.Key,
		PayerID:     art.PayerID,
		PrimaryPath: art.PrimaryPath,
		DurablePath: art.DurablePath,
	})
}

// List returns the addressable URLs of the payer's durable artifacts.
// Rows whose durable file has vanished out-of-band are skipped.
func (m *Manager) List(ctx context.Context, payerID string) ([]string, error) {
	recs, err := m.index.ListByPayer(ctx, payerID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(recs))
	for _, rec := range recs {
		if rec.DurablePath == "" {
			continue
		}
		if _, err := os.Stat(rec.DurablePath); err != nil {
			m.logger.Debug("artifact.list.missing_file",
				zap.String("key", rec.Key), zap.String("path", rec.DurablePath))
			continue
		}
		urls = append(urls, m.urlPrefix+"/"+filepath.Base(rec.DurablePath))
	}
	return urls, nil
}

// Delete removes both format variants for the sanitized key. A missing
// file is not an error; an I/O failure removing an existing file is
// collected and reported while the rest are still attempted.
func (m *Manager) Delete(ctx context.Context, key string) error {
	key = SanitizeKey(key)

	var failed []string
	for _, path := range []string{
		filepath.Join(m.dir, key+receipt.PrimaryExt),
		filepath.Join(m.dir, key+receipt.DurableExt),
	} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.logger.Warn("artifact.delete.remove_failed",
				zap.String("path", path), zap.Error(err))
			failed = append(failed, path)
		}
	}

	// Drop the index row once the durable file is gone; if it survived a
	// failed removal the row stays so the artifact remains listed.
	if _, err := os.Stat(filepath.Join(m.dir, key+receipt.DurableExt)); err != nil {
		if ierr := m.index.Delete(ctx, key); ierr != nil {
			m.logger.Warn("artifact.delete.index_failed",
				zap.String("key", key), zap.Error(ierr))
		}
	}

	if len(failed) > 0 {
		return &common.PartialDeleteError{Key: key, Failed: failed}
	}
	m.logger.Info("artifact.deleted", zap.String("key", key))
	return nil
}

// Reconcile rebuilds the index from the artifact directory: durable files
// present on disk get rows, rows whose durable file disappeared are
// dropped. Run at startup so artifacts created out-of-band (or before the
// index existed) stay listable.
func (m *Manager) Reconcile(ctx context.Context) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return common.WrapError(err, "read artifact dir")
	}

	onDisk := make(map[string]struct{})
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "receipt-") || !strings.HasSuffix(name, receipt.DurableExt) {
			continue
		}
		key := strings.TrimSuffix(name, receipt.DurableExt)
		onDisk[key] = struct{}{}

		rec := Record{
			Key:         key,
			PayerID:     payerFromKey(key),
			DurablePath: filepath.Join(m.dir, name),
		}
		primary := filepath.Join(m.dir, key+receipt.PrimaryExt)
		if _, err := os.Stat(primary); err == nil {
			rec.PrimaryPath = primary
		}
		if err := m.index.Upsert(ctx, rec); err != nil {
			return err
		}
	}

	recs, err := m.index.All(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if _, ok := onDisk[rec.Key]; ok {
			continue
		}
		if err := m.index.Delete(ctx, rec.Key); err != nil {
			return err
		}
	}

	m.logger.Info("artifact.reconciled", zap.Int("on_disk", len(onDisk)))
	return nil
}

// payerFromKey extracts the payer identifier from
// receipt-{payer}-{start}-{end}; the window segments never contain
// hyphens, the payer id may.
func payerFromKey(key string) string {
	rest := strings.TrimPrefix(key, "receipt-")
	parts := strings.Split(rest, "-")
	if len(parts) <= 2 {
		return rest
	}
	return strings.Join(parts[:len(parts)-2], "-")
}
