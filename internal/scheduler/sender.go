package scheduler

import (
	"sync"

	"smbsyncd/internal/model"
)

// StartRequest asks the scheduler to launch a schedule on its next tick
// regardless of its cron time.
type StartRequest struct {
	Server   string `json:"server"`
	Schedule string `json:"schedule"`
}

// The sender half of the start-request channel is published here so the
// control surface can post manual starts without holding a scheduler
// reference. The receiver half stays with the scheduler loop.
var (
	senderMu sync.Mutex
	sender   chan<- StartRequest
)

func setSender(ch chan<- StartRequest) {
	senderMu.Lock()
	defer senderMu.Unlock()
	sender = ch
}

// RequestStart posts a manual start. It never blocks a caller: a full
// queue is reported instead of waited out.
func RequestStart(req StartRequest) error {
	senderMu.Lock()
	defer senderMu.Unlock()

	if sender == nil {
		return model.Internal("scheduler is not running")
	}

	select {
	case sender <- req:
		return nil
	default:
		return model.Internal("scheduler start queue is full")
	}
}
