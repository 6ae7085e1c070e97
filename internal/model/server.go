package model

import "time"

// Server is a target machine hosting SMB shares. Rows are created and
// edited by the configuration UI; the core only reads them.
type Server struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Endpoint string `gorm:"not null" json:"endpoint"`
	Username string `json:"username"`
	Password string `json:"-"`

	// Out-of-band power endpoint, used to wake the machine before a
	// transfer. Empty means the server cannot be woken remotely.
	PowerURL    string `json:"power_url,omitempty"`
	PowerSecret string `json:"-"`
}

func (Server) TableName() string { return "server_items" }

// Schedule ties a cron expression and SMB credentials to a server.
type Schedule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Server      string    `gorm:"uniqueIndex:idx_schedule_server_name;not null" json:"server"`
	Name        string    `gorm:"uniqueIndex:idx_schedule_server_name;not null" json:"name"`
	Cron        string    `gorm:"not null" json:"cron"`
	SMBUser     string    `gorm:"column:smb_user" json:"smb_user"`
	SMBPassword string    `gorm:"column:smb_password" json:"-"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

func (Schedule) TableName() string { return "transfer_auto_schedules" }

// Action is a named (local, remote) directory pair under a schedule.
type Action struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Server    string `gorm:"uniqueIndex:idx_action_triple;not null" json:"server"`
	Schedule  string `gorm:"uniqueIndex:idx_action_triple;not null" json:"schedule"`
	Name      string `gorm:"uniqueIndex:idx_action_triple;not null" json:"name"`
	LocalPath string `gorm:"not null" json:"local_path"`
	SMBFolder string `gorm:"column:smb_folder;not null" json:"smb_folder"`
	Enabled   bool   `gorm:"not null;default:true" json:"enabled"`
}

func (Action) TableName() string { return "transfer_auto_jobs" }
