package usecase

import "time"

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type MetricsRecorder interface {
	RecordRun(success bool, duration time.Duration)
	RecordStage(stage string, success bool, duration time.Duration)
	RecordUpload(size int64)
	RecordPlaceholders(n int)
	RecordPrune(deleted, failed, retained int)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(bool, time.Duration)           {}
func (nopRecorder) RecordStage(string, bool, time.Duration) {}
func (nopRecorder) RecordUpload(int64)                      {}
func (nopRecorder) RecordPlaceholders(int)                  {}
func (nopRecorder) RecordPrune(int, int, int)               {}
