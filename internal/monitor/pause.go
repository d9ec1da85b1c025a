package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
)

const flagLayout = "2006-01-02 15:04:05"

// PauseFlag is the control-plane file whose presence pauses monitoring.
type PauseFlag struct {
	Path string
}

// State describes the flag as found on disk.
type State struct {
	Paused bool      `json:"paused"`
	Since  time.Time `json:"since,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// Active reports whether the flag file exists.
func (p PauseFlag) Active() bool {
	_, err := os.Stat(p.Path)
	return err == nil
}

// State reads the flag. The file holds the creation time on its first line
// and an optional reason on the second.
func (p PauseFlag) State() (State, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, failure.New(failure.CodePersistence, "monitor.pause_state", err)
	}
	s := State{Paused: true}
	first, rest, _ := strings.Cut(string(data), "\n")
	if t, err := time.ParseInLocation(flagLayout, strings.TrimSpace(first), time.Local); err == nil {
		s.Since = t
	}
	s.Reason = strings.TrimSpace(rest)
	return s, nil
}

// Set creates the flag unless it already exists. It reports whether this
// call created it.
func (p PauseFlag) Set(at time.Time, reason string) (bool, error) {
	f, err := os.OpenFile(p.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, failure.New(failure.CodePersistence, "monitor.pause_set", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\n%s\n", at.Local().Format(flagLayout), reason); err != nil {
		return true, failure.New(failure.CodePersistence, "monitor.pause_set", err)
	}
	return true, nil
}

// Clear removes the flag. A missing flag is not an error.
func (p PauseFlag) Clear() error {
	err := os.Remove(p.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return failure.New(failure.CodePersistence, "monitor.pause_clear", err)
	}
	return nil
}
