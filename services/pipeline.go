package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"marketplace-sync/models"
	"marketplace-sync/snapshot"
	"marketplace-sync/storage"
	"marketplace-sync/utils"
)

// Error kinds reported in a failed Result.
const (
	KindNotFound        = "not_found"
	KindParse           = "parse"
	KindConstraint      = "constraint_violation"
	KindExternalProcess = "external_process"
	KindInternal        = "internal"
)

// Result is the single outcome of one pipeline run.
type Result struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message,omitempty"`
	Snapshot      string              `json:"snapshot,omitempty"`
	Stats         *models.ImportStats `json:"stats,omitempty"`
	ScraperOutput string              `json:"scraperOutput,omitempty"`
	Error         string              `json:"error,omitempty"`
	Kind          string              `json:"kind,omitempty"`
	Details       string              `json:"details,omitempty"`
}

// PipelineConfig locates the scraper's and the pricing step's output.
type PipelineConfig struct {
	ScrapedDataDir string
	ResponsesDir   string
}

// Pipeline sequences snapshot location, reconciliation and the estimate
// overlay. It takes no lock: concurrent runs against one store race.
type Pipeline struct {
	cfg      PipelineConfig
	catalog  storage.Catalog
	scraper  *ScraperRunner
	previews *PreviewReconciler
	details  *DetailReconciler
	overlay  *EstimateOverlay
	logger   *utils.Logger
}

// NewPipeline wires the reconcilers. scraper may be nil.
func NewPipeline(cfg PipelineConfig, catalog storage.Catalog, scraper *ScraperRunner, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		catalog:  catalog,
		scraper:  scraper,
		previews: NewPreviewReconciler(logger),
		details:  NewDetailReconciler(logger),
		overlay:  NewEstimateOverlay(logger),
		logger:   logger,
	}
}

// ImportPreviews optionally runs the scraper, then reconciles the latest
// snapshot's previews.
func (p *Pipeline) ImportPreviews(ctx context.Context, scrape bool) Result {
	var scraperOutput string
	if scrape {
		p.logger.Info("[pipeline] Running preview scraper")
		stdout, stderr, err := p.scraper.Run(ctx)
		if err != nil {
			return p.failure("run scraper", err, nil)
		}
		if stderr != "" {
			p.logger.Warn("[pipeline] Scraper stderr: %s", stderr)
		}
		scraperOutput = stdout
	}

	runDir, err := snapshot.LatestRun(p.cfg.ScrapedDataDir)
	if err != nil {
		return p.failure("locate snapshot", err, nil)
	}
	records, err := snapshot.ReadPreviews(runDir)
	if err != nil {
		return p.failure("read previews", err, nil)
	}
	p.logger.Info("[pipeline] Importing %d listing previews from %s", len(records), runDir)

	sess, err := p.catalog.Session(ctx)
	if err != nil {
		return p.failure("open session", err, nil)
	}
	defer p.closeSession(sess)

	stats, err := p.previews.Reconcile(ctx, sess, records)
	if err != nil {
		return p.failure("reconcile previews", err, &stats)
	}

	return Result{
		Success:       true,
		Message:       "Preview import completed",
		Snapshot:      filepath.Base(runDir),
		Stats:         &stats,
		ScraperOutput: scraperOutput,
	}
}

// ImportDetails reconciles the latest snapshot's detailed listings, then
// overlays the newest price estimates file.
func (p *Pipeline) ImportDetails(ctx context.Context) Result {
	runDir, err := snapshot.LatestRun(p.cfg.ScrapedDataDir)
	if err != nil {
		return p.failure("locate snapshot", err, nil)
	}
	records, err := snapshot.ReadDetails(runDir)
	if err != nil {
		return p.failure("read listings", err, nil)
	}
	estimates, source, err := snapshot.ReadEstimates(p.cfg.ResponsesDir)
	if err != nil {
		return p.failure("read price estimates", err, nil)
	}
	if source == "" {
		p.logger.Info("[pipeline] No price estimates file in %s, skipping overlay", p.cfg.ResponsesDir)
	}
	p.logger.Info("[pipeline] Importing %d listings from %s", len(records), runDir)

	sess, err := p.catalog.Session(ctx)
	if err != nil {
		return p.failure("open session", err, nil)
	}
	defer p.closeSession(sess)

	stats, storedIDs, err := p.details.Reconcile(ctx, sess, records)
	if err != nil {
		return p.failure("reconcile listings", err, &stats)
	}

	applied, err := p.overlay.Apply(ctx, sess, estimates, storedIDs)
	stats.PriceEstimates = &applied
	if err != nil {
		return p.failure("apply price estimates", err, &stats)
	}
	if source != "" {
		p.logger.Info("[pipeline] Applied %d price estimates from %s", applied, filepath.Base(source))
	}

	return Result{
		Success:  true,
		Message:  "Listing import completed",
		Snapshot: filepath.Base(runDir),
		Stats:    &stats,
	}
}

// Status reports how many previews still await a detail scrape.
func (p *Pipeline) Status(ctx context.Context) (models.PreviewStatus, error) {
	return p.catalog.PreviewStatus(ctx)
}

func (p *Pipeline) closeSession(sess storage.Session) {
	if err := sess.Close(); err != nil {
		p.logger.Warn("[pipeline] Closing session: %v", err)
	}
}

func (p *Pipeline) failure(step string, err error, stats *models.ImportStats) Result {
	p.logger.Error("[pipeline] %s failed: %v", step, err)

	res := Result{
		Success: false,
		Error:   fmt.Sprintf("%s: %v", step, err),
		Kind:    errorKind(err),
		Stats:   stats,
	}
	var procErr *ExternalProcessError
	if errors.As(err, &procErr) {
		res.Details = procErr.Diagnostics()
	}
	return res
}

func errorKind(err error) string {
	var procErr *ExternalProcessError
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		return KindNotFound
	case snapshot.IsParseError(err):
		return KindParse
	case errors.Is(err, storage.ErrConstraintViolation):
		return KindConstraint
	case errors.As(err, &procErr), errors.Is(err, ErrScraperNotConfigured):
		return KindExternalProcess
	default:
		return KindInternal
	}
}
