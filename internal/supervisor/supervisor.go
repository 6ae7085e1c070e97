package supervisor

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"smbsyncd/internal/logger"
	"smbsyncd/internal/model"
	"smbsyncd/internal/registry"
	"smbsyncd/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Supervisor launches and babysits one run of the external sync binary per
// job: it prepares an isolated config file, consumes the child's structured
// log stream, projects progress into the registry and honors cancellation.
type Supervisor struct {
	reg        *registry.Registry
	jobs       *repository.JobRepository
	servers    *repository.ServerRepository
	workDir    string
	rclonePath string
}

func New(reg *registry.Registry, jobs *repository.JobRepository, servers *repository.ServerRepository, workDir, rclonePath string) *Supervisor {
	return &Supervisor{
		reg:        reg,
		jobs:       jobs,
		servers:    servers,
		workDir:    workDir,
		rclonePath: rclonePath,
	}
}

// Launch verifies the job exists and is not running, prepares the config
// file and wire path, then hands the child process to a worker goroutine.
func (s *Supervisor) Launch(jobID string) error {
	var rec model.JobRecord
	if err := s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		j, ok := jobs[jobID]
		if !ok {
			return model.BadRequest("unknown job %q", jobID)
		}
		if j.Worker != nil {
			return model.BadRequest("job %q is already running", jobID)
		}
		rec = j.Record.Clone()
		return nil
	}); err != nil {
		return err
	}

	srv, err := s.servers.GetByName(rec.Server)
	if err != nil {
		return model.BadRequest("unknown server %q", rec.Server)
	}

	wire, err := TranslateRemotePath(rec.SMBUser, rec.RemotePath)
	if err != nil {
		return err
	}

	cfgPath, section, err := s.prepareConfig(srv, rec)
	if err != nil {
		return err
	}

	cmd := exec.Command(s.rclonePath, "sync", rec.LocalPath, section+":"+wire,
		"--use-json-log",
		"--stats", "1s",
		"--log-level", "NOTICE",
		"--stats-log-level", "NOTICE")
	cmd.Env = append(os.Environ(), "RCLONE_CONFIG="+cfgPath)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.Remove(cfgPath)
		return model.ExternalTool("cannot attach to sync process output", err)
	}
	cmd.Stderr = cmd.Stdout

	cancelReq := make(chan struct{}, 1)
	cancelAck := make(chan bool, 1)
	done := make(chan struct{})

	if err := s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		j, ok := jobs[jobID]
		if !ok {
			return model.BadRequest("unknown job %q", jobID)
		}
		if j.Worker != nil {
			return model.BadRequest("job %q is already running", jobID)
		}

		now := time.Now().UTC()
		j.Record.StartDate = &now
		j.Record.EndDate = nil
		j.Record.FatalErrors = nil
		j.Record.Warnings = nil
		j.Record.LastStats = nil
		j.Record.LastUpdated = now

		j.Worker = &registry.WorkerHandle{Done: done}
		j.CancelReq = cancelReq
		j.CancelAck = cancelAck

		if err := s.jobs.Upsert(j.Record); err != nil {
			logger.Log.Warn("failed to persist job start",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
		return nil
	}); err != nil {
		_ = os.Remove(cfgPath)
		return err
	}

	go s.run(jobID, cmd, stdout, cfgPath, cancelReq, cancelAck, done)

	logger.Log.Info("job launched",
		zap.String("job_id", jobID),
		zap.String("server", rec.Server),
		zap.String("local", rec.LocalPath),
		zap.String("remote", wire))

	return nil
}

// prepareConfig writes a fresh single-section config file for this run and
// returns its path and section name.
func (s *Supervisor) prepareConfig(srv model.Server, rec model.JobRecord) (string, string, error) {
	if err := os.MkdirAll(s.workDir, 0755); err != nil {
		return "", "", model.Internal("cannot create work dir: %v", err)
	}
	sweepStaleConfigs(s.workDir, staleConfigAge)

	obscured, err := s.obscure(rec.SMBPassword)
	if err != nil {
		return "", "", err
	}

	host, err := resolveHost(srv.Endpoint)
	if err != nil {
		return "", "", err
	}

	section := configSection(srv.Name)
	cfgPath := filepath.Join(s.workDir, uuid.NewString()+tmpExt)
	if err := writeRcloneConfig(cfgPath, section, host, rec.SMBUser, obscured); err != nil {
		return "", "", model.Internal("cannot write sync config: %v", err)
	}

	return cfgPath, section, nil
}

// obscure runs the binary's obscure subcommand over the SMB password.
func (s *Supervisor) obscure(password string) (string, error) {
	out, err := exec.Command(s.rclonePath, "obscure", password).Output()
	if err != nil {
		return "", model.ExternalTool("failed to obscure password", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// run owns the child process for its whole life. It is the only goroutine
// that mutates this job's record while the worker handle is present.
func (s *Supervisor) run(jobID string, cmd *exec.Cmd, stdout io.ReadCloser, cfgPath string, cancelReq <-chan struct{}, cancelAck chan<- bool, done chan<- struct{}) {
	defer close(done)
	defer func() { _ = os.Remove(cfgPath) }()

	if err := cmd.Start(); err != nil {
		logger.Log.Error("failed to spawn sync process",
			zap.String("job_id", jobID),
			zap.Error(err))
		s.finalize(jobID, "failed to spawn sync process: "+err.Error())
		return
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-cancelReq:
			if err := cmd.Process.Kill(); err != nil {
				logger.Log.Warn("failed to kill sync process",
					zap.String("job_id", jobID),
					zap.Error(err))
				cancelAck <- false
			} else {
				cancelAck <- true
				_ = cmd.Wait()
				s.finalize(jobID, "Operation cancelled")
				return
			}
		default:
		}

		entry, err := parseLogLine(scanner.Text())
		if err != nil {
			logger.Log.Debug("unparseable sync output line",
				zap.String("job_id", jobID),
				zap.String("line", scanner.Text()))
			continue
		}
		s.apply(jobID, entry)
	}

	if err := cmd.Wait(); err != nil {
		logger.Log.Info("sync process exited with error",
			zap.String("job_id", jobID),
			zap.Error(err))
	}

	s.finalize(jobID, "")
}

// apply projects one log record into the registry. LastStats is never
// replaced with absent while the job runs.
func (s *Supervisor) apply(jobID string, entry *logLine) {
	_ = s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		j, ok := jobs[jobID]
		if !ok {
			return nil
		}

		if entry.Stats != nil {
			stats := *entry.Stats
			j.Record.LastStats = &stats
		}
		j.Record.LastUpdated = time.Now().UTC()

		switch entry.Level {
		case "fatal":
			if entry.Msg != "" {
				j.Record.FatalErrors = append(j.Record.FatalErrors, entry.Msg)
			}
		case "err", "error", "warn", "warning":
			if entry.Msg != "" {
				j.Record.Warnings = append(j.Record.Warnings, entry.Msg)
			}
		}
		return nil
	})
}

// finalize sets the end date and clears the ephemeral fields in one
// critical section, then persists the record.
func (s *Supervisor) finalize(jobID, fatalMsg string) {
	_ = s.reg.WithJobs(func(jobs map[string]*registry.LiveJob) error {
		j, ok := jobs[jobID]
		if !ok {
			return nil
		}

		now := time.Now().UTC()
		j.Record.EndDate = &now
		j.Record.LastUpdated = now
		if fatalMsg != "" {
			j.Record.FatalErrors = append(j.Record.FatalErrors, fatalMsg)
		}
		j.ClearWorker()

		if err := s.jobs.Upsert(j.Record); err != nil {
			// Dropped here; the scheduler's next persist pass catches up.
			logger.Log.Warn("failed to persist job end",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
		return nil
	})

	logger.Log.Info("job finished",
		zap.String("job_id", jobID),
		zap.String("fatal", fatalMsg))
}
