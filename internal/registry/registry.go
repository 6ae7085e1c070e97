package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"smbsyncd/internal/logger"
	"smbsyncd/internal/model"
	"smbsyncd/internal/repository"

	"go.uber.org/zap"
)

// WorkerHandle marks a LiveJob as owned by a running supervisor. Done is
// closed when the supervisor goroutine exits.
type WorkerHandle struct {
	Done <-chan struct{}
}

// LiveJob wraps a durable JobRecord with the ephemeral fields a restart
// cannot restore. The registry only holds the cancel channels to route
// cancellation; the supervisor that created them owns them.
type LiveJob struct {
	Record    model.JobRecord
	Worker    *WorkerHandle
	CancelReq chan<- struct{}
	CancelAck <-chan bool
}

func (j *LiveJob) Status() model.JobStatus {
	return model.DeriveStatus(j.Record, j.Worker != nil)
}

// ClearWorker drops all ephemeral fields. Callers must set EndDate in the
// same critical section.
func (j *LiveJob) ClearWorker() {
	j.Worker = nil
	j.CancelReq = nil
	j.CancelAck = nil
}

// Registry is the single owner of all LiveJobs. Every access goes through
// WithJobs, which reconciles the table against the job store first.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*LiveJob
	repo *repository.JobRepository
}

func New(repo *repository.JobRepository) *Registry {
	return &Registry{
		jobs: make(map[string]*LiveJob),
		repo: repo,
	}
}

// WithJobs runs f with exclusive access to the LiveJob table. Holders must
// not block on external I/O other than job store reads and writes.
func (r *Registry) WithJobs(f func(jobs map[string]*LiveJob) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reconcileLocked()
	return f(r.jobs)
}

// reconcileLocked merges store rows unknown to the table, with ephemeral
// fields cleared. Store read failures are logged and retried on the next
// acquisition.
func (r *Registry) reconcileLocked() {
	rows, err := r.repo.GetAll()
	if err != nil {
		logger.Log.Warn("job store read failed during reconcile",
			zap.Error(err))
		return
	}

	for _, rec := range rows {
		if _, ok := r.jobs[rec.JobID]; !ok {
			r.jobs[rec.JobID] = &LiveJob{Record: rec.Clone()}
		}
	}
}

// Snapshot returns value copies of all records, newest first.
func (r *Registry) Snapshot() []model.JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reconcileLocked()

	out := make([]model.JobRecord, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Record.Clone())
	}

	sortRecords(out)
	return out
}

// Summaries returns the control-surface view of all jobs, newest first.
func (r *Registry) Summaries() []model.JobSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reconcileLocked()

	recs := make([]model.JobRecord, 0, len(r.jobs))
	status := make(map[string]model.JobStatus, len(r.jobs))
	for _, j := range r.jobs {
		recs = append(recs, j.Record)
		status[j.Record.JobID] = j.Status()
	}
	sortRecords(recs)

	out := make([]model.JobSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Summary(status[rec.JobID]))
	}
	return out
}

// PersistAll writes every record to the store in one pass. Individual row
// failures are logged and collected but never abort the pass.
func (r *Registry) PersistAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, j := range r.jobs {
		if err := r.repo.Upsert(j.Record); err != nil {
			logger.Log.Warn("failed to persist job",
				zap.String("job_id", j.Record.JobID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return model.StoreFailure(errors.Join(errs...))
	}
	return nil
}

func sortRecords(recs []model.JobRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recordSortTime(recs[i]).After(recordSortTime(recs[j]))
	})
}

func recordSortTime(r model.JobRecord) time.Time {
	if r.StartDate != nil {
		return r.StartDate.UTC()
	}
	return r.LastUpdated.UTC()
}
