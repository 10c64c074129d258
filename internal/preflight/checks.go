package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"drugscreen/internal/config"
	"drugscreen/internal/documents"
	"drugscreen/internal/store"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase opens the store, which creates or verifies the schema.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Database"

	st, err := store.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer st.Close()

	version, err := st.SchemaVersion(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("schema version unreadable (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema v%d)", st.Path(), version)}
}

// CheckDocuments round-trips a probe object through the configured backend.
// The memory driver always passes but is flagged since documents do not
// survive a restart.
func CheckDocuments(ctx context.Context, cfg *config.Config) Result {
	const name = "Document storage"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	svc, err := documents.Open(checkCtx, cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := svc.Probe(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s probe failed (%s)", svc.Driver(), summarizeError(err))}
	}
	if svc.Driver() == config.DocumentsDriverMemory {
		return Result{Name: name, Passed: true, Detail: "memory (not persistent)"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", svc.Driver())}
}

// CheckEmailTransport verifies the mail API is configured and reachable.
// Any HTTP response other than an auth failure counts as reachable.
func CheckEmailTransport(ctx context.Context, cfg *config.Config) Result {
	const name = "Email transport"

	if cfg.Email.Transport == config.EmailTransportLog {
		return Result{Name: name, Passed: true, Detail: "log transport (emails are not delivered)"}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.Email.APIURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing api_url"}
	}
	if strings.TrimSpace(cfg.Email.APIKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}
	if strings.TrimSpace(cfg.Email.From) == "" {
		return Result{Name: name, Detail: "missing from address"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/domains", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.Email.APIKey))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%s)", summarizeError(err))}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	case resp.StatusCode >= http.StatusInternalServerError:
		return Result{Name: name, Detail: fmt.Sprintf("mail API unhealthy (%d)", resp.StatusCode)}
	}
	detail := "reachable"
	if cfg.Email.TestMode {
		detail = fmt.Sprintf("reachable, test mode redirects to %s", cfg.Email.TestAddress)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckAlerts reports whether operator alerts leave the process.
func CheckAlerts(cfg *config.Config) Result {
	const name = "Admin alerts"

	topic := strings.TrimSpace(cfg.Alerts.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled (alerts are only logged)"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("ntfy %s", topic)}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
