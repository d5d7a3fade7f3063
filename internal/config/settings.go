package config

import (
	"sync/atomic"
	"time"
)

// Settings holds user preferences that may change while the process runs.
// Readers always observe the latest value.
type Settings struct {
	skipWindow atomic.Int64
}

// NewSettings seeds Settings from the loaded library configuration.
func NewSettings(cfg LibraryConfig) *Settings {
	s := &Settings{}
	s.SetLibraryUpdateSkipWindow(cfg.SkipUpdateWindow)
	return s
}

// LibraryUpdateSkipWindow returns the current skip window. Zero means disabled.
func (s *Settings) LibraryUpdateSkipWindow() time.Duration {
	return time.Duration(s.skipWindow.Load())
}

// SetLibraryUpdateSkipWindow replaces the skip window. Negative values disable it.
func (s *Settings) SetLibraryUpdateSkipWindow(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.skipWindow.Store(int64(d))
}
