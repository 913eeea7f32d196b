package domain

import (
	"errors"
	"fmt"
	"time"
)

type RunState string

const (
	StateIdle      RunState = "idle"
	StateBuilding  RunState = "building"
	StateUploading RunState = "uploading"
	StatePruning   RunState = "pruning"
	StateDone      RunState = "done"
	StateAborted   RunState = "aborted"
)

var (
	ErrSourceRead        = errors.New("source read failed")
	ErrPackaging         = errors.New("packaging failed")
	ErrRemoteAuth        = errors.New("remote store rejected credentials")
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrRemoteDisabled    = errors.New("remote store disabled")
	ErrUploadIncomplete  = errors.New("upload incomplete")
	ErrPruneItem         = errors.New("could not delete old backup")
	ErrDuplicateFolder   = errors.New("duplicate backup folders")
)

// StageError records the state a run was in when it aborted.
type StageError struct {
	Stage RunState
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type PruneFailure struct {
	Object RemoteObject
	Err    error
}

type PruneResult struct {
	Retained int
	Deleted  []RemoteObject
	Failed   []PruneFailure
}

type RunReport struct {
	RunID     string
	State     RunState
	Metadata  *BackupMetadata
	Archive   string
	Object    *RemoteObject
	Prune     *PruneResult
	PruneErr  error
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

func (r *RunReport) Success() bool {
	return r.State == StateDone && r.Err == nil
}
