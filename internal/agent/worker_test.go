package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/autodesign-coordinator/internal/jobs"
)

type fakeSource struct {
	jobs      []jobs.Descriptor
	jobsCalls int
	reports   []jobs.ReportRequest
	keys      []string
	reportErr error
	rejectJob string
}

func (f *fakeSource) Jobs(ctx context.Context) ([]jobs.Descriptor, error) {
	f.jobsCalls++
	return f.jobs, nil
}

func (f *fakeSource) Report(ctx context.Context, r jobs.ReportRequest, key string) error {
	f.keys = append(f.keys, key)
	if f.reportErr != nil {
		return f.reportErr
	}
	if r.JobID == f.rejectJob {
		return &StatusError{Code: 413, Message: "payload too large"}
	}
	f.reports = append(f.reports, r)
	return nil
}

type fakeRenderer struct {
	calls []string
	err   error
}

func (r *fakeRenderer) Render(ctx context.Context, master string, fields map[string]string, outDir string) error {
	r.calls = append(r.calls, master)
	return r.err
}

func batch() jobs.OrderBatch {
	return jobs.OrderBatch{
		ID: "o1", OrderID: "o1", ExternalNumber: "1001",
		Items: []jobs.BatchItem{
			{ID: "i1", TemplateKey: "WED", TemplateFolder: "/tpl/WED", Fields: map[string]string{"Names": "A"}},
			{ID: "i2", TemplateFolder: "/tpl/JSO", MasterFile: "main.psd"},
		},
	}
}

func newWorker(src JobSource, r Renderer) *Worker {
	return &Worker{Source: src, Renderer: r, OutputRoot: "/out", Log: zerolog.Nop()}
}

func TestTick_RendersBatchAndReportsSuccess(t *testing.T) {
	src := &fakeSource{jobs: []jobs.Descriptor{batch()}}
	r := &fakeRenderer{}
	w := newWorker(src, r)

	require.True(t, w.Tick(context.Background()))
	assert.Equal(t, []string{"/tpl/WED/WED.psd", "/tpl/JSO/main.psd"}, r.calls)
	require.Len(t, src.reports, 1)
	rep := src.reports[0]
	assert.Equal(t, "o1", rep.JobID)
	assert.Equal(t, jobs.OutcomeSuccess, rep.Outcome)
	assert.Equal(t, filepath.Join("/out", "1001_o1"), rep.ResultLocation)
	assert.False(t, w.Pending())
}

func TestTick_AnyItemFailureFailsBatch(t *testing.T) {
	src := &fakeSource{jobs: []jobs.Descriptor{batch()}}
	w := newWorker(src, &fakeRenderer{err: errors.New("photoshop crashed")})

	w.Tick(context.Background())
	require.Len(t, src.reports, 1)
	assert.Equal(t, jobs.OutcomeFailure, src.reports[0].Outcome)
	assert.Contains(t, src.reports[0].ErrorDetail, "photoshop crashed")
	assert.Contains(t, src.reports[0].ErrorDetail, "i1")
}

func TestTick_ItemWithoutMasterFailsBatch(t *testing.T) {
	b := jobs.OrderBatch{ID: "o2", Items: []jobs.BatchItem{{ID: "i9", ProductName: "Card"}}}
	src := &fakeSource{jobs: []jobs.Descriptor{b}}
	r := &fakeRenderer{}
	w := newWorker(src, r)

	w.Tick(context.Background())
	assert.Empty(t, r.calls)
	require.Len(t, src.reports, 1)
	assert.Equal(t, jobs.OutcomeFailure, src.reports[0].Outcome)
}

func TestTick_UndeliveredReportBlocksNewWork(t *testing.T) {
	src := &fakeSource{jobs: []jobs.Descriptor{batch()}, reportErr: errors.New("connection refused")}
	r := &fakeRenderer{}
	w := newWorker(src, r)
	ctx := context.Background()

	w.Tick(ctx)
	require.True(t, w.Pending())
	require.Equal(t, 1, src.jobsCalls)

	assert.False(t, w.Tick(ctx))
	assert.Equal(t, 1, src.jobsCalls, "must not fetch while a report is undelivered")
	assert.Len(t, r.calls, 2, "must not render again")

	src.reportErr = nil
	w.Tick(ctx)
	assert.False(t, w.Pending())
	require.Len(t, src.reports, 2)
	assert.Equal(t, src.keys[0], src.keys[1], "retries reuse the idempotency key")
	assert.Equal(t, src.keys[0], src.keys[2])
}

func TestTick_RejectedReportIsDropped(t *testing.T) {
	src := &fakeSource{jobs: []jobs.Descriptor{batch()}, reportErr: &StatusError{Code: 404, Message: "not found"}}
	w := newWorker(src, &fakeRenderer{})

	w.Tick(context.Background())
	assert.False(t, w.Pending())
}

func TestTick_RejectedJobIsNotRenderedAgain(t *testing.T) {
	other := jobs.OrderBatch{ID: "o2", OrderID: "o2", ExternalNumber: "1002",
		Items: []jobs.BatchItem{{ID: "i3", MasterFile: "/tpl/x.psd"}}}
	src := &fakeSource{jobs: []jobs.Descriptor{batch(), other}, rejectJob: "o1"}
	r := &fakeRenderer{}
	w := newWorker(src, r)
	ctx := context.Background()

	require.True(t, w.Tick(ctx))
	assert.False(t, w.Pending())
	assert.Len(t, r.calls, 2)

	// The rejected batch is still listed; the next one behind it is served.
	require.True(t, w.Tick(ctx))
	assert.Len(t, r.calls, 3)
	require.Len(t, src.reports, 1)
	assert.Equal(t, "o2", src.reports[0].JobID)

	src.jobs = []jobs.Descriptor{batch()}
	assert.False(t, w.Tick(ctx))
	assert.False(t, w.Tick(ctx))
	assert.Len(t, r.calls, 3, "a rejected batch must not be rendered again")

	// Once the operator resets it the batch leaves the list; a new claim is
	// rendered normally.
	src.jobs = nil
	w.Tick(ctx)
	src.jobs, src.rejectJob = []jobs.Descriptor{batch()}, ""
	require.True(t, w.Tick(ctx))
	assert.Len(t, r.calls, 5)
	require.Len(t, src.reports, 2)
}

func TestTick_OutputDirIncludesOrderID(t *testing.T) {
	a := batch()
	b := batch()
	b.ID, b.OrderID = "o9", "o9"
	src := &fakeSource{jobs: []jobs.Descriptor{a}}
	w := newWorker(src, &fakeRenderer{})
	ctx := context.Background()

	w.Tick(ctx)
	src.jobs = []jobs.Descriptor{b}
	w.Tick(ctx)
	require.Len(t, src.reports, 2)
	assert.NotEqual(t, src.reports[0].ResultLocation, src.reports[1].ResultLocation,
		"same order number from two stores must not share a folder")

	assert.Equal(t, "o1", outputDirName(jobs.OrderBatch{OrderID: "o1"}))
	assert.Equal(t, "12_3_o1", outputDirName(jobs.OrderBatch{OrderID: "o1", ExternalNumber: "12/3"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "ž" is two bytes; cutting inside it drops the whole rune.
	assert.Equal(t, "a", truncate("až", 2))
	assert.Equal(t, "až", truncate("až", 3))
	assert.Equal(t, "", truncate("ž", 1))

	long := strings.Repeat("č", 3000)
	rep := failure(batch(), errors.New(long))
	assert.LessOrEqual(t, len(rep.ErrorDetail), 4000)
	assert.True(t, utf8.ValidString(rep.ErrorDetail))
}

func TestTick_TemplateScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "WED.psd"), []byte("8BPS\x00\x01\x00\x00\x00\x00\x00\x00"), 0o644))
	src := &fakeSource{jobs: []jobs.Descriptor{jobs.TemplateScan{ID: "WED", TemplateKey: "WED", FolderPath: dir}}}
	w := newWorker(src, nil)

	w.Tick(context.Background())
	require.Len(t, src.reports, 1)
	rep := src.reports[0]
	assert.Equal(t, jobs.KindTemplateScan, rep.Type)
	assert.Equal(t, jobs.OutcomeSuccess, rep.Outcome)
	assert.Equal(t, "WED.psd", rep.MasterFile)

	src.reports = nil
	src.jobs = []jobs.Descriptor{jobs.TemplateScan{ID: "X", FolderPath: filepath.Join(dir, "missing")}}
	w.Tick(context.Background())
	require.Len(t, src.reports, 1)
	assert.Equal(t, jobs.OutcomeFailure, src.reports[0].Outcome)
}

func TestTick_NoJobs(t *testing.T) {
	src := &fakeSource{}
	w := newWorker(src, &fakeRenderer{})
	assert.False(t, w.Tick(context.Background()))
	assert.Empty(t, src.keys)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "1001", safeName("1001"))
	assert.Equal(t, "a_b", safeName("a/b"))
	assert.Equal(t, "order", safeName(".."))
}
