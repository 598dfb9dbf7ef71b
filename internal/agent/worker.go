package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/autodesign-coordinator/internal/jobs"
)

const defaultInterval = 10 * time.Second

// JobSource is the coordinator as seen by a worker.
type JobSource interface {
	Jobs(ctx context.Context) ([]jobs.Descriptor, error)
	Report(ctx context.Context, r jobs.ReportRequest, idemKey string) error
}

// pendingReport is the in-flight token: a finished job whose report has not
// been delivered yet.
type pendingReport struct {
	req jobs.ReportRequest
	key string
}

// Worker processes one job at a time. While a report is undelivered the
// loop only retries that report and never fetches new work. Jobs whose
// report the coordinator rejected are skipped until they leave the job
// list, which takes an operator abandon or reset.
type Worker struct {
	Source     JobSource
	Renderer   Renderer
	Scan       func(root string) (ScanResult, error)
	OutputRoot string
	Interval   time.Duration
	Log        zerolog.Logger

	pending  *pendingReport
	rejected map[string]struct{}
}

// Run ticks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	w.Log.Info().Dur("interval", interval).Msg("worker started")
	w.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Log.Info().Msg("worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle and reports whether a job was processed.
func (w *Worker) Tick(ctx context.Context) bool {
	if w.pending != nil {
		if !w.deliver(ctx) {
			return false
		}
	}

	list, err := w.Source.Jobs(ctx)
	if err != nil {
		w.Log.Warn().Err(err).Msg("poll failed")
		return false
	}
	job := w.next(list)
	if job == nil {
		if len(list) == 0 {
			w.Log.Debug().Msg("no jobs")
		} else {
			w.Log.Debug().Int("rejected", len(w.rejected)).Msg("only rejected jobs available")
		}
		return false
	}
	log := w.Log.With().Str("job_id", job.JobID()).Str("type", string(job.Kind())).Logger()
	log.Info().Int("available", len(list)).Msg("job start")
	start := time.Now()

	rep := w.process(ctx, job)
	w.pending = &pendingReport{req: rep, key: uuid.NewString()}

	ev := log.Info()
	if rep.Outcome == jobs.OutcomeFailure {
		ev = log.Warn().Str("error", rep.ErrorDetail)
	}
	ev.Str("outcome", string(rep.Outcome)).Dur("took", time.Since(start)).Msg("job finished")

	w.deliver(ctx)
	return true
}

// Pending reports whether a report is waiting for delivery.
func (w *Worker) Pending() bool { return w.pending != nil }

// next returns the first job not previously rejected. Rejections for jobs
// no longer listed are forgotten, so a batch that was reset and claimed
// again is picked up.
func (w *Worker) next(list []jobs.Descriptor) jobs.Descriptor {
	var pick jobs.Descriptor
	listed := make(map[string]struct{}, len(list))
	for _, j := range list {
		k := jobKey(j.Kind(), j.JobID())
		listed[k] = struct{}{}
		if _, skip := w.rejected[k]; !skip && pick == nil {
			pick = j
		}
	}
	for k := range w.rejected {
		if _, ok := listed[k]; !ok {
			delete(w.rejected, k)
		}
	}
	return pick
}

func jobKey(kind jobs.Kind, id string) string { return string(kind) + ":" + id }

func (w *Worker) deliver(ctx context.Context) bool {
	p := w.pending
	err := w.Source.Report(ctx, p.req, p.key)
	var se *StatusError
	switch {
	case err == nil:
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != 429:
		// Resending cannot help and rendering again would only be rejected
		// again.
		if w.rejected == nil {
			w.rejected = map[string]struct{}{}
		}
		w.rejected[jobKey(p.req.Type, p.req.JobID)] = struct{}{}
		w.Log.Error().Err(err).Str("job_id", p.req.JobID).Msg("report rejected; job skipped until abandoned or reset")
	default:
		w.Log.Warn().Err(err).Str("job_id", p.req.JobID).Msg("report undelivered; will retry")
		return false
	}
	w.pending = nil
	return true
}

func (w *Worker) process(ctx context.Context, job jobs.Descriptor) jobs.ReportRequest {
	ctx, span := otel.Tracer("agent/Worker").Start(ctx, "Worker.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.JobID()),
		attribute.String("job.type", string(job.Kind())),
	)

	var rep jobs.ReportRequest
	switch j := job.(type) {
	case jobs.OrderBatch:
		rep = w.renderBatch(ctx, j)
	case jobs.TemplateScan:
		rep = w.scanTemplate(j)
	default:
		rep = failure(job, fmt.Errorf("unsupported job type %s", job.Kind()))
	}
	if rep.Outcome == jobs.OutcomeFailure {
		span.SetStatus(codes.Error, rep.ErrorDetail)
	}
	return rep
}

func (w *Worker) renderBatch(ctx context.Context, b jobs.OrderBatch) jobs.ReportRequest {
	if w.Renderer == nil {
		return failure(b, errors.New("no renderer configured"))
	}
	outDir := filepath.Join(w.OutputRoot, outputDirName(b))

	for _, it := range b.Items {
		master, err := masterPath(it)
		if err != nil {
			return failure(b, err)
		}
		if err := w.Renderer.Render(ctx, master, it.Fields, outDir); err != nil {
			return failure(b, fmt.Errorf("item %s: %w", it.ID, err))
		}
	}
	return jobs.ReportRequest{
		JobID:           b.ID,
		Type:            jobs.KindOrderBatch,
		Outcome:         jobs.OutcomeSuccess,
		ResultLocation:  outDir,
		PreviewLocation: findPreview(outDir),
	}
}

func (w *Worker) scanTemplate(s jobs.TemplateScan) jobs.ReportRequest {
	scan := w.Scan
	if scan == nil {
		scan = ScanFolder
	}
	res, err := scan(s.FolderPath)
	if err != nil {
		return failure(s, err)
	}
	return jobs.ReportRequest{
		JobID:      s.ID,
		Type:       jobs.KindTemplateScan,
		Outcome:    jobs.OutcomeSuccess,
		MasterFile: res.MasterFile,
		Assets:     res.Assets,
	}
}

// masterPath resolves an item's master file. A relative MasterFile is taken
// relative to the template folder; without one the folder is expected to
// hold <templateKey>.psd.
func masterPath(it jobs.BatchItem) (string, error) {
	switch {
	case it.MasterFile != "" && filepath.IsAbs(it.MasterFile):
		return it.MasterFile, nil
	case it.MasterFile != "" && it.TemplateFolder != "":
		return filepath.Join(it.TemplateFolder, filepath.FromSlash(it.MasterFile)), nil
	case it.TemplateFolder != "" && it.TemplateKey != "":
		return filepath.Join(it.TemplateFolder, it.TemplateKey+".psd"), nil
	}
	return "", fmt.Errorf("item %s (%s) has no master design", it.ID, it.ProductName)
}

func failure(job jobs.Descriptor, err error) jobs.ReportRequest {
	return jobs.ReportRequest{
		JobID:       job.JobID(),
		Type:        job.Kind(),
		Outcome:     jobs.OutcomeFailure,
		ErrorDetail: truncate(err.Error(), 4000),
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// outputDirName names a batch's output folder. Order numbers are only
// unique per store, so the order ID is always part of the name.
func outputDirName(b jobs.OrderBatch) string {
	if b.ExternalNumber == "" {
		return safeName(b.OrderID)
	}
	return safeName(b.ExternalNumber) + "_" + safeName(b.OrderID)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "order"
	}
	return s
}
