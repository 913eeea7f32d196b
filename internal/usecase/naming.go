package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const archiveTimeLayout = "20060102-150405"

var archiveTimeRe = regexp.MustCompile(`^-(\d{8}-\d{6})(\..+)?$`)

// ArchiveBaseName returns "<prefix>-<YYYYMMDD-HHMMSS>" in UTC. Names sort
// lexically in creation order at one-second resolution.
func ArchiveBaseName(prefix string, t time.Time) string {
	return prefix + "-" + t.UTC().Format(archiveTimeLayout)
}

// ParseArchiveTime extracts the timestamp embedded by ArchiveBaseName from a
// file name such as "<prefix>-20260101-020000.tar.gz".
func ParseArchiveTime(prefix, filename string) (time.Time, error) {
	if !strings.HasPrefix(filename, prefix) {
		return time.Time{}, fmt.Errorf("invalid filename format: %q lacks prefix %q", filename, prefix)
	}

	matches := archiveTimeRe.FindStringSubmatch(strings.TrimPrefix(filename, prefix))
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found in %q", filename)
	}

	return time.ParseInLocation(archiveTimeLayout, matches[1], time.UTC)
}

func IsArchiveName(prefix, filename string) bool {
	_, err := ParseArchiveTime(prefix, filename)
	return err == nil
}
