package scheduler

import (
	"context"
	"time"

	"smbsyncd/internal/logger"
	"smbsyncd/internal/model"
	"smbsyncd/internal/probe"
	"smbsyncd/internal/registry"
	"smbsyncd/internal/repository"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const startQueueSize = 16

// Launcher starts a supervisor for an existing, non-running job.
type Launcher interface {
	Launch(jobID string) error
}

// Scheduler is the periodic control loop. Each tick it decides which
// configured actions are due from their cron expressions and last-run
// times, dedupes against running jobs, and launches the eligible ones.
type Scheduler struct {
	reg       *registry.Registry
	servers   *repository.ServerRepository
	schedules *repository.ScheduleRepository
	actions   *repository.ActionRepository
	jobs      *repository.JobRepository
	prober    *probe.Prober
	launcher  Launcher

	period  time.Duration
	parser  cron.Parser
	startCh chan StartRequest
	stopCh  chan struct{}
	now     func() time.Time
}

func New(reg *registry.Registry, prober *probe.Prober, launcher Launcher, period time.Duration) *Scheduler {
	return &Scheduler{
		reg:       reg,
		servers:   repository.NewServerRepository(),
		schedules: repository.NewScheduleRepository(),
		actions:   repository.NewActionRepository(),
		jobs:      repository.NewJobRepository(),
		prober:    prober,
		launcher:  launcher,
		period:    period,
		parser: cron.NewParser(
			cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		startCh: make(chan StartRequest, startQueueSize),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
}

func (s *Scheduler) Start() {
	setSender(s.startCh)
	go s.loop()

	logger.Log.Info("scheduler started",
		zap.Duration("period", s.period))
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	setSender(nil)
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-s.stopCh:
			return
		}
	}
}

type launchRequest struct {
	schedule model.Schedule
	action   model.Action
	forced   bool
}

// Tick runs one scheduling pass. Store failures abort the pass and are
// retried on the next tick.
func (s *Scheduler) Tick() {
	manual := s.drainStarts()

	schedules, err := s.schedules.GetAll()
	if err != nil {
		logger.Log.Warn("failed to read schedules", zap.Error(err))
		return
	}
	actions, err := s.actions.GetAll()
	if err != nil {
		logger.Log.Warn("failed to read actions", zap.Error(err))
		return
	}

	toLaunch := s.collect(schedules, actions, manual)
	for _, req := range toLaunch {
		s.launch(req)
	}

	if err := s.reg.PersistAll(); err != nil {
		logger.Log.Warn("persist pass had failures", zap.Error(err))
	}
}

func (s *Scheduler) drainStarts() []StartRequest {
	var out []StartRequest
	for {
		select {
		case req := <-s.startCh:
			out = append(out, req)
		default:
			return out
		}
	}
}

// collect decides, under the registry guard, which (server, schedule,
// action) triples launch this tick. Manual starts go first in submission
// order; due actions follow in configuration order.
func (s *Scheduler) collect(schedules []model.Schedule, actions []model.Action, manual []StartRequest) []launchRequest {
	now := s.now().UTC()

	var toLaunch []launchRequest
	_ = s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		queued := make(map[string]bool)

		add := func(sched model.Schedule, act model.Action, forced bool) {
			key := act.Server + "\x00" + act.Schedule + "\x00" + act.Name
			if queued[key] {
				return
			}
			queued[key] = true
			toLaunch = append(toLaunch, launchRequest{schedule: sched, action: act, forced: forced})
		}

		for _, m := range manual {
			for _, act := range actions {
				if !act.Enabled || act.Server != m.Server || act.Schedule != m.Schedule {
					continue
				}
				sched, ok := findSchedule(schedules, act.Server, act.Schedule)
				if !ok {
					continue
				}
				// An unparseable cron suppresses the schedule entirely,
				// forced starts included.
				if _, err := s.parser.Parse(sched.Cron); err != nil {
					logger.Log.Warn("unparseable cron expression",
						zap.String("server", sched.Server),
						zap.String("schedule", sched.Name),
						zap.String("cron", sched.Cron),
						zap.Error(err))
					continue
				}
				if tripleRunning(jobs, act) {
					continue
				}
				add(sched, act, true)
			}
		}

		for _, act := range actions {
			if !act.Enabled {
				continue
			}
			sched, ok := findSchedule(schedules, act.Server, act.Schedule)
			if !ok {
				continue
			}

			spec, err := s.parser.Parse(sched.Cron)
			if err != nil {
				logger.Log.Warn("unparseable cron expression",
					zap.String("server", sched.Server),
					zap.String("schedule", sched.Name),
					zap.String("cron", sched.Cron),
					zap.Error(err))
				continue
			}

			if tripleRunning(jobs, act) {
				continue
			}

			lastRan := lastRanTime(jobs, act, sched.LastUpdated)
			next := spec.Next(lastRan.UTC())
			if next.IsZero() || next.After(now) {
				continue
			}
			add(sched, act, false)
		}
		return nil
	})

	return toLaunch
}

// launch creates the JobRecord, probes the server, and spawns a supervisor
// on probe success. Probe failures are recorded on the job, not propagated.
func (s *Scheduler) launch(req launchRequest) {
	now := s.now().UTC()
	rec := model.JobRecord{
		JobID:       uuid.NewString(),
		Server:      req.action.Server,
		SMBUser:     req.schedule.SMBUser,
		SMBPassword: req.schedule.SMBPassword,
		LocalPath:   req.action.LocalPath,
		RemotePath:  req.action.SMBFolder,
		Schedule:    req.schedule.Name,
		Action:      req.action.Name,
		LastUpdated: now,
		InitHash: model.InitHash(
			req.action.Server, req.schedule.Name, req.action.Name,
			req.action.LocalPath, req.action.SMBFolder),
	}

	_ = s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		jobs[rec.JobID] = &registry.LiveJob{Record: rec}
		if err := s.jobs.Upsert(rec); err != nil {
			logger.Log.Warn("failed to persist new job",
				zap.String("job_id", rec.JobID),
				zap.Error(err))
		}
		return nil
	})

	logger.Log.Info("job scheduled",
		zap.String("job_id", rec.JobID),
		zap.String("server", rec.Server),
		zap.String("schedule", rec.Schedule),
		zap.String("action", rec.Action),
		zap.Bool("forced", req.forced))

	srv, err := s.servers.GetByName(req.action.Server)
	if err == nil {
		err = s.prober.Probe(context.Background(), srv)
	}
	if err != nil {
		s.failJob(rec.JobID, err.Error())
		return
	}

	if err := s.launcher.Launch(rec.JobID); err != nil {
		s.failJob(rec.JobID, err.Error())
	}
}

func (s *Scheduler) failJob(jobID, msg string) {
	_ = s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		j, ok := jobs[jobID]
		if !ok {
			return nil
		}

		now := s.now().UTC()
		j.Record.FatalErrors = append(j.Record.FatalErrors, msg)
		j.Record.EndDate = &now
		j.Record.LastUpdated = now

		if err := s.jobs.Upsert(j.Record); err != nil {
			logger.Log.Warn("failed to persist job failure",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
		return nil
	})
}

func findSchedule(schedules []model.Schedule, server, name string) (model.Schedule, bool) {
	for _, sched := range schedules {
		if sched.Server == server && sched.Name == name {
			return sched, true
		}
	}
	return model.Schedule{}, false
}

func relatedJob(j *registry.LiveJob, act model.Action) bool {
	return j.Record.Server == act.Server &&
		j.Record.Schedule == act.Schedule &&
		j.Record.Action == act.Name
}

func tripleRunning(jobs map[string]*registry.LiveJob, act model.Action) bool {
	for _, j := range jobs {
		if relatedJob(j, act) && j.Status() == model.JobStatusRunning {
			return true
		}
	}
	return false
}

// lastRanTime is the latest end date (start date when still open) of the
// triple's previous jobs, defaulting to the schedule's last_updated.
func lastRanTime(jobs map[string]*registry.LiveJob, act model.Action, fallback time.Time) time.Time {
	last := fallback
	for _, j := range jobs {
		if !relatedJob(j, act) {
			continue
		}

		t := j.Record.StartDate
		if j.Record.EndDate != nil {
			t = j.Record.EndDate
		}
		if t != nil && t.After(last) {
			last = *t
		}
	}
	return last
}
