package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// JobRecord is the durable record of one transfer job attempt. It holds
// value fields only; in-process state (worker handle, cancel channels)
// lives on the registry's LiveJob wrapper.
type JobRecord struct {
	JobID       string `gorm:"primaryKey;column:job_id" json:"job_id"`
	Server      string `gorm:"not null" json:"server"`
	SMBUser     string `gorm:"column:smb_user" json:"smb_user"`
	SMBPassword string `gorm:"column:smb_password" json:"-"`
	LocalPath   string `json:"local_path"`
	RemotePath  string `json:"remote_path"`

	// Back-reference to the schedule and action that spawned this job.
	// Empty for jobs created through the control surface directly.
	Schedule string `json:"schedule,omitempty"`
	Action   string `json:"action,omitempty"`

	StartDate   *time.Time     `json:"start_date,omitempty"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	LastStats   *TransferStats `gorm:"serializer:json" json:"last_stats,omitempty"`
	FatalErrors []string       `gorm:"serializer:json" json:"fatal_errors"`
	Warnings    []string       `gorm:"serializer:json" json:"warnings"`
	LastUpdated time.Time      `json:"last_updated"`
	InitHash    string         `gorm:"column:init_hash" json:"init_hash"`
}

func (JobRecord) TableName() string { return "transfer_jobs_internal" }

// Clone returns a deep value copy, so snapshots cannot alias registry state.
func (r JobRecord) Clone() JobRecord {
	out := r
	if r.StartDate != nil {
		t := *r.StartDate
		out.StartDate = &t
	}
	if r.EndDate != nil {
		t := *r.EndDate
		out.EndDate = &t
	}
	if r.LastStats != nil {
		s := *r.LastStats
		out.LastStats = &s
	}
	out.FatalErrors = append([]string(nil), r.FatalErrors...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return out
}

// InitHash fingerprints the configuration a job was created from.
func InitHash(server, schedule, action, localPath, remotePath string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s", server, schedule, action, localPath, remotePath)))
	return hex.EncodeToString(sum[:])
}

// JobSummary is the control-surface view of a job: record fields minus
// credentials, plus the derived status.
type JobSummary struct {
	JobID       string         `json:"job_id"`
	Server      string         `json:"server"`
	Schedule    string         `json:"schedule,omitempty"`
	Action      string         `json:"action,omitempty"`
	LocalPath   string         `json:"local_path"`
	RemotePath  string         `json:"remote_path"`
	StartDate   *time.Time     `json:"start_date,omitempty"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	FatalErrors []string       `json:"fatal_errors"`
	Warnings    []string       `json:"warnings"`
	LastStats   *TransferStats `json:"last_stats,omitempty"`
	Status      JobStatus      `json:"status"`
}

func (r JobRecord) Summary(status JobStatus) JobSummary {
	c := r.Clone()
	return JobSummary{
		JobID:       c.JobID,
		Server:      c.Server,
		Schedule:    c.Schedule,
		Action:      c.Action,
		LocalPath:   c.LocalPath,
		RemotePath:  c.RemotePath,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		FatalErrors: c.FatalErrors,
		Warnings:    c.Warnings,
		LastStats:   c.LastStats,
		Status:      status,
	}
}
