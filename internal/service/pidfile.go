package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/batalabs/gramd/internal/config"
)

// PidfileData is the JSON structure stored in the bot pidfile.
type PidfileData struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// PidfileName is the filename of the bot pidfile.
const PidfileName = "gramd.pid"

// PidfilePath returns the path to the bot pidfile.
func PidfilePath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", fmt.Errorf("pidfile path: %w", err)
	}
	return filepath.Join(dir, PidfileName), nil
}

// WritePidfile records the current PID and start time. Called once at bot
// startup; used by `-service status` and the Windows stop path.
func WritePidfile() error {
	p, err := PidfilePath()
	if err != nil {
		return err
	}
	data := PidfileData{
		PID:       os.Getpid(),
		StartedAt: time.Now(),
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling pidfile: %w", err)
	}
	return os.WriteFile(p, b, 0o600)
}

// ReadPidfile reads and parses the bot pidfile.
func ReadPidfile() (*PidfileData, error) {
	p, err := PidfilePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading pidfile: %w", err)
	}
	var pf PidfileData
	if err := json.Unmarshal(b, &pf); err != nil {
		return nil, fmt.Errorf("parsing pidfile: %w", err)
	}
	return &pf, nil
}

// RemovePidfile removes the bot pidfile.
func RemovePidfile() error {
	p, err := PidfilePath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pidfile: %w", err)
	}
	return nil
}

// IsPidfileStale reports whether the pidfile refers to a dead process.
func IsPidfileStale(pf *PidfileData) bool {
	return pf == nil || !IsProcessAlive(pf.PID)
}
