package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smbsyncd/internal/logger"
	"smbsyncd/internal/model"

	"go.uber.org/zap"
)

// Prober is the preflight reachability check run before a transfer is
// committed. An optional wake request is sent to the server's out-of-band
// power endpoint, then its information endpoint is polled.
type Prober struct {
	Client       *http.Client
	WakeAttempts int
	InfoAttempts int
	Gap          time.Duration
}

func New() *Prober {
	return &Prober{
		Client:       &http.Client{Timeout: 10 * time.Second},
		WakeAttempts: 3,
		InfoAttempts: 2,
		Gap:          2 * time.Second,
	}
}

// Probe returns nil when the server answered its information query. Wake
// failures alone are never fatal; they only matter if the info query also
// exhausts its retries.
func (p *Prober) Probe(ctx context.Context, srv model.Server) error {
	if srv.PowerURL != "" {
		p.wake(ctx, srv)
	}

	infoURL, err := infoURL(srv.Endpoint)
	if err != nil {
		return model.BadRequest("cannot parse endpoint of server %s: %v", srv.Name, err)
	}

	var lastErr error
	for attempt := 0; attempt < p.InfoAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Gap); err != nil {
				return model.UnreachableServer(err)
			}
		}

		if err := p.query(ctx, infoURL, srv.Username, srv.Password); err != nil {
			lastErr = err
			logger.Log.Debug("server info query failed",
				zap.String("server", srv.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		return nil
	}

	return model.UnreachableServer(lastErr)
}

// wake posts the power-on request, best effort. The first accepted attempt
// ends the loop.
func (p *Prober) wake(ctx context.Context, srv model.Server) {
	body := fmt.Sprintf(`{"secret":%q}`, srv.PowerSecret)

	for attempt := 0; attempt < p.WakeAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Gap); err != nil {
				return
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.PowerURL, strings.NewReader(body))
		if err != nil {
			logger.Log.Warn("bad power endpoint",
				zap.String("server", srv.Name),
				zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.Client.Do(req)
		if err != nil {
			logger.Log.Debug("wake request failed",
				zap.String("server", srv.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}

		logger.Log.Debug("wake request rejected",
			zap.String("server", srv.Name),
			zap.Int("status", resp.StatusCode))
	}
}

func (p *Prober) query(ctx context.Context, u, user, pass string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("info query returned status %d", resp.StatusCode)
	}
	return nil
}

// infoURL accepts a full URL or a bare IP literal.
func infoURL(endpoint string) (string, error) {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint, nil
	}
	if ip := net.ParseIP(endpoint); ip != nil {
		return "http://" + endpoint + "/", nil
	}
	return "", fmt.Errorf("endpoint %q is neither a URL nor an IP", endpoint)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
