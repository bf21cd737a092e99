package receipt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/adaeze-umeh/donation-receipts/internal/billing"
	"github.com/adaeze-umeh/donation-receipts/internal/common"
)

// stubRunner mimics a soffice-style converter: it drops a same-named .pdf
// into the output directory and counts invocations.
type stubRunner struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	fail  bool
	noOut bool
}

func (r *stubRunner) Run(ctx context.Context, _ string, args ...string) ([]byte, []byte, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(r.delay):
		}
	}
	if r.fail {
		return nil, []byte("conversion blew up"), errors.New("exit status 1")
	}
	if r.noOut {
		return nil, nil, nil
	}

	src := args[len(args)-1]
	outDir := args[len(args)-2]
	name := strings.TrimSuffix(filepath.Base(src), PrimaryExt) + DurableExt
	return nil, nil, os.WriteFile(filepath.Join(outDir, name), []byte("%PDF-1.4 stub"), 0o644)
}

func (r *stubRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type stubRecorder struct {
	mu   sync.Mutex
	arts []Artifact
}

func (r *stubRecorder) Record(_ context.Context, art Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arts = append(r.arts, art)
	return nil
}

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Donation Receipt __receipt_id__"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "__donator__"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "__email__"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "__items__"))
	require.NoError(t, f.SetCellValue("Sheet1", "A4", "Total: __total_amount__"))
	require.NoError(t, f.SetCellValue("Sheet1", "A5", "__issued_by__, __year__"))
	path := filepath.Join(dir, "donation_receipt.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func sampleRequest() billing.ReceiptRequest {
	return billing.ReceiptRequest{
		ReceiptID:   "R-test",
		DonatorID:   "P1",
		Donator:     "Jane Doe",
		Email:       "jane@example.com",
		TotalAmount: "$10.00",
		IssuedBy:    "Admin",
		Note:        "Thank you for donating!",
		Year:        "2025",
		Items: []billing.BillingLine{
			{Date: "2025-05-01", Description: "Donation", Amount: "$10.00"},
		},
		StartDate: "01May25",
		EndDate:   "31May25",
	}
}

func newTestSynthesizer(t *testing.T, runner Runner, rec Recorder) (*Synthesizer, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := common.ArtifactsConfig{
		Dir:          dir,
		TemplatePath: writeTemplate(t, t.TempDir()),
		URLPrefix:    "/tmp",
	}
	return NewSynthesizer(cfg, common.ConverterConfig{Binary: "soffice"}, runner, rec, nil), dir
}

func TestKey(t *testing.T) {
	assert.Equal(t, "receipt-P1-01May25-31May25", Key(sampleRequest()))

	open := sampleRequest()
	open.StartDate = "000000"
	open.EndDate = "000000"
	assert.Equal(t, "receipt-P1-000000-000000", Key(open))
}

func TestRenderBindsPlaceholders(t *testing.T) {
	tplDir := t.TempDir()
	tpl := writeTemplate(t, tplDir)
	out := filepath.Join(t.TempDir(), "out.xlsx")

	req := sampleRequest()
	req.Items = []billing.BillingLine{
		{Date: "2025-05-01", Description: "General fund", Amount: "$10.00"},
		{Date: "2025-05-02", Description: "Building fund", Amount: "$7.50"},
	}
	require.NoError(t, Render(tpl, req, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	get := func(axis string) string {
		v, err := f.GetCellValue("Sheet1", axis)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Donation Receipt R-test", get("A1"))
	assert.Equal(t, "Jane Doe", get("A2"))
	assert.Equal(t, "jane@example.com", get("B2"))

	// Items marker expanded into one row per line.
	assert.Equal(t, "2025-05-01", get("A3"))
	assert.Equal(t, "General fund", get("B3"))
	assert.Equal(t, "$10.00", get("C3"))
	assert.Equal(t, "2025-05-02", get("A4"))
	assert.Equal(t, "$7.50", get("C4"))

	// Rows below the marker shifted down with it.
	assert.Equal(t, "Total: $10.00", get("A5"))
	assert.Equal(t, "Admin, 2025", get("A6"))
}

func TestRenderMissingTemplate(t *testing.T) {
	err := Render(filepath.Join(t.TempDir(), "absent.xlsx"), sampleRequest(), filepath.Join(t.TempDir(), "out.xlsx"))
	assert.ErrorIs(t, err, common.ErrTemplateBinding)
}

func TestSynthesizeIdempotent(t *testing.T) {
	runner := &stubRunner{}
	rec := &stubRecorder{}
	s, dir := newTestSynthesizer(t, runner, rec)

	url1, err := s.Synthesize(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/receipt-P1-01May25-31May25.pdf", url1)
	assert.FileExists(t, filepath.Join(dir, "receipt-P1-01May25-31May25.pdf"))
	assert.FileExists(t, filepath.Join(dir, "receipt-P1-01May25-31May25.xlsx"))

	// Same key again: cache hit, converter not invoked a second time even
	// though the request content differs.
	changed := sampleRequest()
	changed.Note = "Corrected note"
	url2, err := s.Synthesize(context.Background(), changed)
	require.NoError(t, err)
	assert.Equal(t, url1, url2)
	assert.Equal(t, 1, runner.count())
	assert.Len(t, rec.arts, 1)
	assert.Equal(t, "P1", rec.arts[0].PayerID)
}

func TestSynthesizeCacheHitWithoutPrimary(t *testing.T) {
	runner := &stubRunner{}
	s, dir := newTestSynthesizer(t, runner, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipt-P1-01May25-31May25.pdf"), []byte("%PDF"), 0o644))

	url, err := s.Synthesize(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/receipt-P1-01May25-31May25.pdf", url)
	assert.Equal(t, 0, runner.count())
}

func TestSynthesizeConcurrentSameKey(t *testing.T) {
	runner := &stubRunner{delay: 50 * time.Millisecond}
	s, _ := newTestSynthesizer(t, runner, nil)

	var wg sync.WaitGroup
	urls := make([]string, 4)
	errs := make([]error, 4)
	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			urls[i], errs[i] = s.Synthesize(context.Background(), sampleRequest())
		}(i)
	}
	wg.Wait()

	for i := range urls {
		require.NoError(t, errs[i])
		assert.Equal(t, urls[0], urls[i])
	}
	assert.Equal(t, 1, runner.count())
}

func TestSynthesizeConverterFailure(t *testing.T) {
	runner := &stubRunner{fail: true}
	s, dir := newTestSynthesizer(t, runner, nil)

	_, err := s.Synthesize(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, common.ErrConversion)

	// No partial artifact left behind.
	assert.NoFileExists(t, filepath.Join(dir, "receipt-P1-01May25-31May25.xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "receipt-P1-01May25-31May25.pdf"))
}

func TestSynthesizeConverterTimeout(t *testing.T) {
	runner := &stubRunner{delay: time.Second}
	dir := t.TempDir()
	cfg := common.ArtifactsConfig{
		Dir:          dir,
		TemplatePath: writeTemplate(t, t.TempDir()),
		URLPrefix:    "/tmp",
	}
	s := NewSynthesizer(cfg, common.ConverterConfig{Binary: "soffice", Timeout: 20 * time.Millisecond}, runner, nil, nil)

	_, err := s.Synthesize(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, common.ErrConversion)

	// The aborted run leaves nothing behind.
	assert.NoFileExists(t, filepath.Join(dir, "receipt-P1-01May25-31May25.xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "receipt-P1-01May25-31May25.pdf"))
}

func TestSynthesizeOutlivesCallerCancel(t *testing.T) {
	runner := &stubRunner{delay: 20 * time.Millisecond}
	s, dir := newTestSynthesizer(t, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A canceled initiator must not abort the generation other waiters may
	// be sharing.
	url, err := s.Synthesize(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/receipt-P1-01May25-31May25.pdf", url)
	assert.FileExists(t, filepath.Join(dir, "receipt-P1-01May25-31May25.pdf"))
}

func TestSynthesizeConverterProducedNothing(t *testing.T) {
	runner := &stubRunner{noOut: true}
	s, _ := newTestSynthesizer(t, runner, nil)

	_, err := s.Synthesize(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, common.ErrConversion)
}
