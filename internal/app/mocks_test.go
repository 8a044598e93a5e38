package app

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leakwatchio/api/internal/infra/engine"
	"github.com/leakwatchio/api/pkg/domain/finding"
	"github.com/leakwatchio/api/pkg/domain/multiscan"
	"github.com/leakwatchio/api/pkg/domain/project"
	"github.com/leakwatchio/api/pkg/domain/scan"
	"github.com/leakwatchio/api/pkg/domain/shared"
	"github.com/leakwatchio/api/pkg/pagination"
)

// fakeTransactor satisfies Transactor without a real database. The callback
// gets a nil *sql.Tx; the in-memory repositories ignore it.
type fakeTransactor struct{}

func (fakeTransactor) Transaction(_ context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

// memScanRepo is an in-memory scan.Repository.
type memScanRepo struct {
	mu    sync.Mutex
	scans map[shared.ID]*scan.Scan
}

func newMemScanRepo() *memScanRepo {
	return &memScanRepo{scans: make(map[shared.ID]*scan.Scan)}
}

func (r *memScanRepo) Create(_ context.Context, sc *scan.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sc
	r.scans[sc.ID] = &cp
	return nil
}

func (r *memScanRepo) GetByID(_ context.Context, id shared.ID) (*scan.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.scans[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (r *memScanRepo) GetByIDTx(ctx context.Context, _ *sql.Tx, id shared.ID) (*scan.Scan, error) {
	return r.GetByID(ctx, id)
}

func (r *memScanRepo) Update(_ context.Context, sc *scan.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scans[sc.ID]; !ok {
		return shared.ErrNotFound
	}
	cp := *sc
	r.scans[sc.ID] = &cp
	return nil
}

func (r *memScanRepo) UpdateTx(ctx context.Context, _ *sql.Tx, sc *scan.Scan) error {
	return r.Update(ctx, sc)
}

func (r *memScanRepo) List(_ context.Context, filter scan.Filter, page pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scan.Scan
	for _, sc := range r.scans {
		if filter.ProjectName != "" && sc.ProjectName != filter.ProjectName {
			continue
		}
		if filter.Status != nil && sc.Status != *filter.Status {
			continue
		}
		cp := *sc
		out = append(out, &cp)
	}
	return pagination.NewResult(out, int64(len(out)), page), nil
}

func (r *memScanRepo) ListCompletedByProject(_ context.Context, projectName string, exclude shared.ID, limit int) ([]*scan.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scan.Scan
	for _, sc := range r.scans {
		if sc.ProjectName != projectName || sc.Status != scan.StatusCompleted || sc.ID == exclude {
			continue
		}
		cp := *sc
		out = append(out, &cp)
	}
	// Matches the production query: most recently completed first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memScanRepo) ListStaleRunning(_ context.Context, cutoff time.Time) ([]*scan.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scan.Scan
	for _, sc := range r.scans {
		if sc.Status != scan.StatusRunning || sc.StartedAt == nil || !sc.StartedAt.Before(cutoff) {
			continue
		}
		cp := *sc
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memScanRepo) UpdateCounters(_ context.Context, id shared.ID, high, potential int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.scans[id]
	if !ok {
		return shared.ErrNotFound
	}
	sc.HighCount = high
	sc.PotentialCount = potential
	return nil
}

func (r *memScanRepo) Delete(_ context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scans[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.scans, id)
	return nil
}

// memFindingRepo is an in-memory finding.Repository.
type memFindingRepo struct {
	mu       sync.Mutex
	findings map[shared.ID]*finding.Finding

	createBatchCalls int
	createBatchErr   error
}

func newMemFindingRepo() *memFindingRepo {
	return &memFindingRepo{findings: make(map[shared.ID]*finding.Finding)}
}

func (r *memFindingRepo) CreateBatch(_ context.Context, fs []*finding.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createBatchCalls++
	if r.createBatchErr != nil {
		return r.createBatchErr
	}
	for _, f := range fs {
		cp := *f
		r.findings[f.ID] = &cp
	}
	return nil
}

func (r *memFindingRepo) GetByID(_ context.Context, id shared.ID) (*finding.Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.findings[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFindingRepo) Update(_ context.Context, f *finding.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.findings[f.ID]; !ok {
		return shared.ErrNotFound
	}
	cp := *f
	r.findings[f.ID] = &cp
	return nil
}

func (r *memFindingRepo) Delete(_ context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.findings[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.findings, id)
	return nil
}

func (r *memFindingRepo) DeleteByScanID(_ context.Context, scanID shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.findings {
		if f.ScanID == scanID {
			delete(r.findings, id)
		}
	}
	return nil
}

func (r *memFindingRepo) ListByScanID(_ context.Context, scanID shared.ID, page pagination.Pagination) (pagination.Result[*finding.Finding], error) {
	fs := r.byScan(scanID, func(*finding.Finding) bool { return true })
	return pagination.NewResult(fs, int64(len(fs)), page), nil
}

func (r *memFindingRepo) ListReviewedByScanID(_ context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	return r.byScan(scanID, func(f *finding.Finding) bool {
		return f.Status != finding.StatusNone
	}), nil
}

func (r *memFindingRepo) ListManualByScanID(_ context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	return r.byScan(scanID, func(f *finding.Finding) bool {
		return strings.HasSuffix(f.RawValue, finding.ManualValueSuffix)
	}), nil
}

func (r *memFindingRepo) CountBySeverity(_ context.Context, scanID shared.ID) (finding.SeverityCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts finding.SeverityCounts
	for _, f := range r.findings {
		if f.ScanID != scanID || f.IsException {
			continue
		}
		switch f.Severity {
		case finding.SeverityHigh:
			counts.High++
		case finding.SeverityPotential:
			counts.Potential++
		}
	}
	return counts, nil
}

func (r *memFindingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.findings)
}

func (r *memFindingRepo) byScan(scanID shared.ID, keep func(*finding.Finding) bool) []*finding.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*finding.Finding
	for _, f := range r.findings {
		if f.ScanID == scanID && keep(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out
}

// memProjectRepo is an in-memory project.Repository.
type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*project.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[string]*project.Project)}
}

func (r *memProjectRepo) Create(_ context.Context, p *project.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.Name]; ok {
		return shared.ErrAlreadyExists
	}
	cp := *p
	r.projects[p.Name] = &cp
	return nil
}

func (r *memProjectRepo) GetByName(_ context.Context, name string) (*project.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[name]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProjectRepo) GetByRepoURL(_ context.Context, repoURL string) (*project.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projects {
		if p.RepoURL == repoURL {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memProjectRepo) List(_ context.Context, page pagination.Pagination) (pagination.Result[*project.Project], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*project.Project
	for _, p := range r.projects {
		cp := *p
		out = append(out, &cp)
	}
	return pagination.NewResult(out, int64(len(out)), page), nil
}

func (r *memProjectRepo) Update(_ context.Context, p *project.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, existing := range r.projects {
		if existing.ID == p.ID {
			delete(r.projects, name)
			cp := *p
			r.projects[p.Name] = &cp
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memProjectRepo) Delete(_ context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.projects {
		if p.ID == id {
			delete(r.projects, name)
			return nil
		}
	}
	return shared.ErrNotFound
}

// memMultiScanRepo is an in-memory multiscan.Repository.
type memMultiScanRepo struct {
	mu      sync.Mutex
	batches map[shared.ID]*multiscan.MultiScan
}

func newMemMultiScanRepo() *memMultiScanRepo {
	return &memMultiScanRepo{batches: make(map[shared.ID]*multiscan.MultiScan)}
}

func (r *memMultiScanRepo) Create(_ context.Context, ms *multiscan.MultiScan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ms
	r.batches[ms.ID] = &cp
	return nil
}

func (r *memMultiScanRepo) GetByID(_ context.Context, id shared.ID) (*multiscan.MultiScan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.batches[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *ms
	return &cp, nil
}

func (r *memMultiScanRepo) List(_ context.Context, page pagination.Pagination) (pagination.Result[*multiscan.MultiScan], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*multiscan.MultiScan
	for _, ms := range r.batches {
		cp := *ms
		out = append(out, &cp)
	}
	return pagination.NewResult(out, int64(len(out)), page), nil
}

func (r *memMultiScanRepo) Delete(_ context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.batches, id)
	return nil
}

func (r *memMultiScanRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// stubEngine is a scriptable DetectionEngine.
type stubEngine struct {
	healthErr    error
	scanResp     *engine.ScanResponse
	scanErr      error
	multiResp    *engine.MultiScanResponse
	multiErr     error
	lastScanReq  engine.ScanRequest
	lastMultiReq engine.MultiScanRequest
}

func (e *stubEngine) Health(context.Context) error { return e.healthErr }

func (e *stubEngine) SubmitScan(_ context.Context, req engine.ScanRequest) (*engine.ScanResponse, error) {
	e.lastScanReq = req
	return e.scanResp, e.scanErr
}

func (e *stubEngine) SubmitMultiScan(_ context.Context, req engine.MultiScanRequest) (*engine.MultiScanResponse, error) {
	e.lastMultiReq = req
	return e.multiResp, e.multiErr
}

// captureEnqueuer records reconcile enqueues instead of hitting a broker.
type captureEnqueuer struct {
	mu      sync.Mutex
	scanIDs []shared.ID
	results []ScanResults
	err     error
}

func (e *captureEnqueuer) EnqueueReconcile(_ context.Context, scanID shared.ID, results ScanResults) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.scanIDs = append(e.scanIDs, scanID)
	e.results = append(e.results, results)
	return nil
}
