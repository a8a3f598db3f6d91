package source

import (
	"context"
	"fmt"
	"os"

	"balances/internal/core"
	"balances/internal/log"
)

// FileFetcher reads the snapshot from a local JSON file on every call, so
// edits to the fixture show up on the next load.
type FileFetcher struct {
	path   string
	logger *log.Logger
}

func NewFileFetcher(path string, logger *log.Logger) *FileFetcher {
	if logger == nil {
		logger = log.Discard()
	}
	return &FileFetcher{path: path, logger: logger.WithComponent(log.ComponentUpstream)}
}

func (f *FileFetcher) FetchSnapshot(ctx context.Context) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, &LoadError{Op: OpRequest, Source: f.path, Err: err}
	}

	body, err := os.ReadFile(f.path)
	if err != nil {
		f.logger.WarnContext(ctx, "Snapshot file unreadable", log.FieldSource, f.path, log.FieldError, err.Error())
		return core.Snapshot{}, &LoadError{Op: OpRead, Source: f.path, Err: err}
	}

	snap, err := core.DecodeSnapshot(body)
	if err != nil {
		f.logger.WarnContext(ctx, "Snapshot file malformed", log.FieldSource, f.path, log.FieldError, err.Error())
		return core.Snapshot{}, &LoadError{Op: OpDecode, Source: f.path, Err: err}
	}
	return snap, nil
}

func (f *FileFetcher) String() string { return fmt.Sprintf("file(%s)", f.path) }

var _ Fetcher = (*FileFetcher)(nil)
