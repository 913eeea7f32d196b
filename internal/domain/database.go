package domain

import "context"

// Database is an optional live data source dumped into the package next to
// the plain data files.
type Database interface {
	Backup(ctx context.Context, outputPath string) error
	GetName() string
	GetType() string
	Ping(ctx context.Context) error
}
