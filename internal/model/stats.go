package model

// TransferStats is the stats block of one structured log line emitted by
// the external sync binary with --use-json-log.
type TransferStats struct {
	Bytes               int64   `json:"bytes"`
	Speed               float64 `json:"speed"`
	TotalBytes          int64   `json:"total_bytes"`
	TotalChecks         int64   `json:"total_checks"`
	TotalTransfers      int64   `json:"total_transfers"`
	Checks              int64   `json:"checks"`
	Transfers           int64   `json:"transfers"`
	Deletes             int64   `json:"deletes"`
	ElapsedTime         float64 `json:"elapsed_time"`
	TransferTime        float64 `json:"transfer_time"`
	Errors              int64   `json:"errors"`
	FatalError          bool    `json:"fatal_error"`
	RetryError          bool    `json:"retry_error"`
	ServerSideCopies    int64   `json:"server_side_copies"`
	ServerSideCopyBytes int64   `json:"server_side_copy_bytes"`
	ServerSideMoves     int64   `json:"server_side_moves"`
	ServerSideMoveBytes int64   `json:"server_side_move_bytes"`
}
