package scheduler

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"smbsyncd/internal/db"
	"smbsyncd/internal/model"
	"smbsyncd/internal/probe"
	"smbsyncd/internal/registry"
	"smbsyncd/internal/repository"

	"github.com/stretchr/testify/require"
)

// tickTime is 70s after the schedule's last_updated, so an every-minute
// cron has exactly one firing in between.
var (
	scheduleTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tickTime     = scheduleTime.Add(70 * time.Second)
)

type fakeLauncher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeLauncher) Launch(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, jobID)
	return f.err
}

func (f *fakeLauncher) launched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func fastProber() *probe.Prober {
	p := probe.New()
	p.Gap = time.Millisecond
	p.Client = &http.Client{Timeout: time.Second}
	return p
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seed(t *testing.T, endpoint, cronExpr string) {
	t.Helper()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))

	require.NoError(t, db.DB.Create(&model.Server{
		Name:     "alpha",
		Endpoint: endpoint,
		Username: "admin",
		Password: "hunter2",
	}).Error)
	require.NoError(t, db.DB.Create(&model.Schedule{
		Server:      "alpha",
		Name:        "daily",
		Cron:        cronExpr,
		SMBUser:     "alice-smb",
		SMBPassword: "pw",
		LastUpdated: scheduleTime,
	}).Error)
	require.NoError(t, db.DB.Create(&model.Action{
		Server:    "alpha",
		Schedule:  "daily",
		Name:      "docs",
		LocalPath: "/home/alice/docs",
		SMBFolder: "/projects/data",
		Enabled:   true,
	}).Error)
}

func newTestScheduler(launcher Launcher) *Scheduler {
	s := New(registry.New(repository.NewJobRepository()), fastProber(), launcher, time.Hour)
	s.now = func() time.Time { return tickTime }
	return s
}

func TestTickLaunchesDueAction(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)
	s.Tick()

	require.Len(t, fl.launched(), 1)

	snaps := s.reg.Snapshot()
	require.Len(t, snaps, 1)
	rec := snaps[0]
	require.Equal(t, "alpha", rec.Server)
	require.Equal(t, "daily", rec.Schedule)
	require.Equal(t, "docs", rec.Action)
	require.Equal(t, "alice-smb", rec.SMBUser)
	require.Equal(t, "/projects/data", rec.RemotePath)
	require.NotEmpty(t, rec.InitHash)
	require.Equal(t, fl.launched()[0], rec.JobID)

	// The record must have landed in the store too.
	stored, err := repository.NewJobRepository().GetByID(rec.JobID)
	require.NoError(t, err)
	require.Equal(t, rec.Server, stored.Server)
}

func TestTickSkipsWhenNotDue(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)
	// last_updated equals "now": no firing strictly after it has passed.
	s.now = func() time.Time { return scheduleTime }
	s.Tick()

	require.Empty(t, fl.launched())
	require.Empty(t, s.reg.Snapshot())
}

func TestTickSkipsRunningTriple(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)

	done := make(chan struct{})
	require.NoError(t, s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		jobs["running"] = &registry.LiveJob{
			Record: model.JobRecord{
				JobID:    "running",
				Server:   "alpha",
				Schedule: "daily",
				Action:   "docs",
			},
			Worker: &registry.WorkerHandle{Done: done},
		}
		return nil
	}))

	s.Tick()
	require.Empty(t, fl.launched())
}

func TestCronParseFailureSuppressesOnlyThatSchedule(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")
	require.NoError(t, db.DB.Create(&model.Schedule{
		Server:      "alpha",
		Name:        "broken",
		Cron:        "not a cron",
		SMBUser:     "alice-smb",
		LastUpdated: scheduleTime,
	}).Error)
	require.NoError(t, db.DB.Create(&model.Action{
		Server:    "alpha",
		Schedule:  "broken",
		Name:      "docs",
		LocalPath: "/home/alice/docs",
		SMBFolder: "/projects/data",
		Enabled:   true,
	}).Error)

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)
	s.Tick()

	require.Len(t, fl.launched(), 1, "the healthy schedule still fires")
	snaps := s.reg.Snapshot()
	require.Len(t, snaps, 1)
	require.Equal(t, "daily", snaps[0].Schedule)
}

func TestDisabledActionNeverLaunches(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")
	require.NoError(t, db.DB.Model(&model.Action{}).
		Where("server = ? AND schedule = ?", "alpha", "daily").
		Update("enabled", false).Error)

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)
	s.Tick()

	require.Empty(t, fl.launched())
}

func TestManualStartForcesLaunch(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)
	// Not due by cron time.
	s.now = func() time.Time { return scheduleTime }

	s.startCh <- StartRequest{Server: "alpha", Schedule: "daily"}
	s.Tick()

	require.Len(t, fl.launched(), 1)
}

func TestManualStartSuppressedByBrokenCron(t *testing.T) {
	seed(t, okServer(t).URL, "not a cron")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)

	s.startCh <- StartRequest{Server: "alpha", Schedule: "daily"}
	s.Tick()

	require.Empty(t, fl.launched())
	require.Empty(t, s.reg.Snapshot())
}

func TestDuplicateManualStartsCollapse(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)
	s.now = func() time.Time { return scheduleTime }

	s.startCh <- StartRequest{Server: "alpha", Schedule: "daily"}
	s.startCh <- StartRequest{Server: "alpha", Schedule: "daily"}
	s.Tick()

	require.Len(t, fl.launched(), 1)
}

func TestManualStartSuppressedWhileRunning(t *testing.T) {
	seed(t, okServer(t).URL, "0 */1 * * * *")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)

	done := make(chan struct{})
	require.NoError(t, s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		jobs["running"] = &registry.LiveJob{
			Record: model.JobRecord{
				JobID:    "running",
				Server:   "alpha",
				Schedule: "daily",
				Action:   "docs",
			},
			Worker: &registry.WorkerHandle{Done: done},
		}
		return nil
	}))

	s.startCh <- StartRequest{Server: "alpha", Schedule: "daily"}
	s.Tick()

	require.Empty(t, fl.launched())
}

func TestProbeFailureRecordsFatalError(t *testing.T) {
	// Nothing listens on port 1; every probe attempt fails.
	seed(t, "http://127.0.0.1:1/", "0 */1 * * * *")

	fl := &fakeLauncher{}
	s := newTestScheduler(fl)
	s.Tick()

	require.Empty(t, fl.launched(), "no supervisor spawns on probe failure")

	snaps := s.reg.Snapshot()
	require.Len(t, snaps, 1)
	rec := snaps[0]
	require.NotEmpty(t, rec.FatalErrors)
	require.NotNil(t, rec.EndDate)
	require.Nil(t, rec.StartDate)
	require.Equal(t, model.JobStatusFailed, model.DeriveStatus(rec, false))
}

func TestRequestStartWithoutScheduler(t *testing.T) {
	setSender(nil)
	err := RequestStart(StartRequest{Server: "alpha", Schedule: "daily"})
	require.Error(t, err)
	require.Equal(t, model.KindInternal, model.KindOf(err))
}

func TestRequestStartReachesScheduler(t *testing.T) {
	ch := make(chan StartRequest, 1)
	setSender(ch)
	defer setSender(nil)

	require.NoError(t, RequestStart(StartRequest{Server: "alpha", Schedule: "daily"}))
	require.Equal(t, StartRequest{Server: "alpha", Schedule: "daily"}, <-ch)
}
