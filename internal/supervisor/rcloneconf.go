package supervisor

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smbsyncd/internal/logger"
	"smbsyncd/internal/model"

	"go.uber.org/zap"
)

const (
	tmpExt         = ".tmp"
	staleConfigAge = 24 * time.Hour
)

// resolveHost reduces a server endpoint to the bare host the sync binary
// expects: the host component of a URL, or an IP literal as-is.
func resolveHost(endpoint string) (string, error) {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Hostname(), nil
	}
	if ip := net.ParseIP(endpoint); ip != nil {
		return endpoint, nil
	}
	return "", model.BadRequest("cannot resolve a host from endpoint %q", endpoint)
}

// configSection keys the generated config by the server name, base64
// encoded with padding removed so it stays a valid section name.
func configSection(serverName string) string {
	return base64.RawStdEncoding.EncodeToString([]byte(serverName))
}

func writeRcloneConfig(path, section, host, user, obscuredPass string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", section)
	b.WriteString("type = smb\n")
	fmt.Fprintf(&b, "host = %s\n", host)
	fmt.Fprintf(&b, "user = %s\n", user)
	fmt.Fprintf(&b, "pass = %s\n", obscuredPass)

	return os.WriteFile(path, []byte(b.String()), 0600)
}

// sweepStaleConfigs removes leftover temp config files older than maxAge.
// Files a crashed supervisor left behind are reclaimed here.
func sweepStaleConfigs(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tmpExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Log.Warn("failed to remove stale config",
				zap.String("path", path),
				zap.Error(err))
		}
	}
}
