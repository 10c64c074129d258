package preflight

import (
	"context"

	"drugscreen/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	// Directory creation errors surface through the access checks below.
	_ = cfg.EnsureDirectories()

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Documents.Driver == config.DocumentsDriverFS {
		results = append(results, CheckDirectoryAccess("Document directory", cfg.Documents.FSRoot))
	}
	results = append(results,
		CheckDatabase(ctx, cfg),
		CheckDocuments(ctx, cfg),
		CheckEmailTransport(ctx, cfg),
		CheckAlerts(cfg),
	)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
