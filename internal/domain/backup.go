package domain

import (
	"context"
	"time"
)

type EntryKind string

const (
	EntryFile      EntryKind = "file"
	EntryDirectory EntryKind = "directory"
	EntryDump      EntryKind = "dump"
)

// Entry is one top-level member of a backup package.
type Entry struct {
	Name        string    `json:"name"`
	Kind        EntryKind `json:"kind"`
	Placeholder bool      `json:"placeholder"`
	Size        int64     `json:"size"`
}

// BackupMetadata is written into every package as backup-info.json.
type BackupMetadata struct {
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	Hostname      string    `json:"hostname"`
	Kind          string    `json:"backup_type"`
	Entries       []Entry   `json:"files_included"`
	RetentionDays int       `json:"retention_days"`
	SourceDir     string    `json:"data_directory"`
}

func (m BackupMetadata) RealEntries() int {
	n := 0
	for _, e := range m.Entries {
		if !e.Placeholder {
			n++
		}
	}
	return n
}

func (m BackupMetadata) PlaceholderEntries() int {
	return len(m.Entries) - m.RealEntries()
}

type BackupJob struct {
	Name     string
	Schedule string
	Executor BackupExecutor
}

type BackupExecutor interface {
	Execute(ctx context.Context) error
}
