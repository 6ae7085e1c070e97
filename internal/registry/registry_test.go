package registry

import (
	"path/filepath"
	"testing"
	"time"

	"smbsyncd/internal/db"
	"smbsyncd/internal/model"
	"smbsyncd/internal/repository"

	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *repository.JobRepository {
	t.Helper()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))
	return repository.NewJobRepository()
}

func storedRecord(id string) model.JobRecord {
	return model.JobRecord{
		JobID:       id,
		Server:      "alpha",
		SMBUser:     "alice-smb",
		LocalPath:   "/home/alice/docs",
		RemotePath:  "/projects/data",
		Schedule:    "daily",
		Action:      "docs",
		LastUpdated: time.Now().UTC().Truncate(time.Second),
	}
}

func TestWithJobsReconcilesStoreRows(t *testing.T) {
	repo := setupDB(t)
	require.NoError(t, repo.Upsert(storedRecord("11111111-1111-1111-1111-111111111111")))
	require.NoError(t, repo.Upsert(storedRecord("22222222-2222-2222-2222-222222222222")))

	reg := New(repo)
	err := reg.WithJobs(func(jobs map[string]*LiveJob) error {
		require.Len(t, jobs, 2)
		for _, j := range jobs {
			require.Nil(t, j.Worker, "reconciled rows come in with ephemeral fields cleared")
			require.Nil(t, j.CancelReq)
			require.Nil(t, j.CancelAck)
			require.Equal(t, model.JobStatusNotStarted, j.Status())
		}
		return nil
	})
	require.NoError(t, err)
}

func TestReconcileDoesNotOverwriteLiveEntries(t *testing.T) {
	repo := setupDB(t)
	rec := storedRecord("11111111-1111-1111-1111-111111111111")
	require.NoError(t, repo.Upsert(rec))

	reg := New(repo)
	done := make(chan struct{})
	require.NoError(t, reg.WithJobs(func(jobs map[string]*LiveJob) error {
		jobs[rec.JobID].Worker = &WorkerHandle{Done: done}
		return nil
	}))

	// A second acquisition reconciles again; the live entry must survive.
	require.NoError(t, reg.WithJobs(func(jobs map[string]*LiveJob) error {
		require.NotNil(t, jobs[rec.JobID].Worker)
		return nil
	}))
}

func TestSnapshotReturnsValueCopies(t *testing.T) {
	repo := setupDB(t)
	rec := storedRecord("11111111-1111-1111-1111-111111111111")
	rec.LastStats = &model.TransferStats{Bytes: 10}
	require.NoError(t, repo.Upsert(rec))

	reg := New(repo)
	snap := reg.Snapshot()
	require.Len(t, snap, 1)

	snap[0].LastStats.Bytes = 999
	snap[0].FatalErrors = append(snap[0].FatalErrors, "mutated")

	again := reg.Snapshot()
	require.Equal(t, int64(10), again[0].LastStats.Bytes)
	require.Empty(t, again[0].FatalErrors)
}

func TestPersistAllThenReconcileRoundTrips(t *testing.T) {
	repo := setupDB(t)
	rec := storedRecord("11111111-1111-1111-1111-111111111111")
	require.NoError(t, repo.Upsert(rec))

	reg := New(repo)
	start := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, reg.WithJobs(func(jobs map[string]*LiveJob) error {
		j := jobs[rec.JobID]
		j.Record.StartDate = &start
		j.Record.LastStats = &model.TransferStats{Bytes: 2048, TotalBytes: 4096}
		j.Record.Warnings = []string{"slow transfer"}
		return nil
	}))

	require.NoError(t, reg.PersistAll())

	// A fresh registry over the same store must reconcile to equal records.
	fresh := New(repo)
	snaps := fresh.Snapshot()
	require.Len(t, snaps, 1)
	got := snaps[0]
	require.Equal(t, rec.JobID, got.JobID)
	require.NotNil(t, got.StartDate)
	require.True(t, got.StartDate.Equal(start))
	require.NotNil(t, got.LastStats)
	require.Equal(t, int64(2048), got.LastStats.Bytes)
	require.Equal(t, []string{"slow transfer"}, got.Warnings)
}

func TestPersistAllSurfacesStoreFailures(t *testing.T) {
	repo := setupDB(t)
	rec := storedRecord("11111111-1111-1111-1111-111111111111")
	require.NoError(t, repo.Upsert(rec))

	reg := New(repo)
	require.NoError(t, reg.WithJobs(func(map[string]*LiveJob) error { return nil }))

	// Dropping the table makes every upsert fail.
	require.NoError(t, db.DB.Migrator().DropTable(&model.JobRecord{}))

	err := reg.PersistAll()
	require.Error(t, err)
	require.Equal(t, model.KindStore, model.KindOf(err))
}

func TestClearWorkerDropsAllEphemeralFields(t *testing.T) {
	repo := setupDB(t)
	reg := New(repo)

	req := make(chan struct{}, 1)
	ack := make(chan bool, 1)
	done := make(chan struct{})

	require.NoError(t, reg.WithJobs(func(jobs map[string]*LiveJob) error {
		jobs["x"] = &LiveJob{
			Record:    model.JobRecord{JobID: "x"},
			Worker:    &WorkerHandle{Done: done},
			CancelReq: req,
			CancelAck: ack,
		}
		require.Equal(t, model.JobStatusRunning, jobs["x"].Status())

		jobs["x"].ClearWorker()
		require.Nil(t, jobs["x"].Worker)
		require.Nil(t, jobs["x"].CancelReq)
		require.Nil(t, jobs["x"].CancelAck)
		require.Equal(t, model.JobStatusNotStarted, jobs["x"].Status())
		return nil
	}))
}
