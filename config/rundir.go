package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/google/uuid"
)

var namegen = namegenerator.NewGenerator()

// RunInfo identifies one simulation run and its output location.
type RunInfo struct {
	ID   string
	Name string
	Dir  string
}

// ResolveRunDir creates the per-run output directory,
// <base>/<date>/<time>-<name>, and returns its identity. Every run gets
// a fresh directory so artifacts from repeated runs never collide.
func ResolveRunDir(base string, now time.Time) (RunInfo, error) {
	name := namegen.Generate()
	dir := filepath.Join(base, now.Format("2006-01-02"), now.Format("15-04-05")+"-"+name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return RunInfo{}, fmt.Errorf("error creating run directory: %w", err)
	}

	return RunInfo{
		ID:   uuid.NewString(),
		Name: name,
		Dir:  dir,
	}, nil
}

// CVDir is where per-client control variates are persisted for a run.
func CVDir(runDir string) string {
	return filepath.Join(runDir, "client_cvs")
}
