package supervisor

import (
	"encoding/json"
	"strings"
	"time"

	"smbsyncd/internal/model"
)

// logLine is one structured record from the sync binary's merged output.
type logLine struct {
	Level string               `json:"level"`
	Msg   string               `json:"msg"`
	Stats *model.TransferStats `json:"stats"`
	Time  time.Time            `json:"time"`
}

// parseLogLine tolerates a wrapping pair of double quotes and escaped inner
// quotes around the JSON record. Anything that still fails to parse is the
// caller's problem to skip.
func parseLogLine(raw string) (*logLine, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		// Only quote-wrapped lines carry escaped inner quotes; unescaping
		// a plain record would corrupt legitimate \" sequences in msg.
		s = strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}

	var line logLine
	if err := json.Unmarshal([]byte(s), &line); err != nil {
		return nil, err
	}
	return &line, nil
}
