package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/bot-gateway-go/internal/model"
)

const defaultLogFolder = "default"

// Recorder appends admitted messages to per-group JSONL logs under
// <dataDir>/logs/<folder>/, one file per day.
type Recorder struct {
	dataDir string
	now     func() time.Time
}

func NewRecorder(dataDir string) *Recorder {
	return &Recorder{dataDir: dataDir, now: time.Now}
}

func (r *Recorder) Record(msg *model.Message, room *model.RoomConfig, isMain bool) error {
	folder := defaultLogFolder
	if room != nil && room.Folder != "" {
		folder = room.Folder
	}

	dir := filepath.Join(r.dataDir, "logs", folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	entry := struct {
		*model.Message
		IsMain bool `json:"isMain"`
	}{Message: msg, IsMain: isMain}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}

	path := filepath.Join(dir, r.now().UTC().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}
