package outlier

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mir00r/cluster-manager/internal/upstream"
)

// event is one line of the newline-delimited JSON ejection log.
type event struct {
	ID            string `json:"id"`
	Time          string `json:"time"`
	Cluster       string `json:"cluster"`
	UpstreamURL   string `json:"upstream_url"`
	Action        string `json:"action"` // eject | uneject
	Type          string `json:"type"`   // consecutive_5xx, ...
	NumEjections  uint32 `json:"num_ejections"`
}

// FileEventLogger appends one JSON object per line to a file, grounded
// on outlier_detection_impl.h's EventLoggerImpl. Each event carries a
// fresh UUID so log consumers can deduplicate retried writes.
type FileEventLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileEventLogger opens path for appending, creating it if absent.
func NewFileEventLogger(path string) (*FileEventLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileEventLogger{file: f}, nil
}

func (l *FileEventLogger) LogEject(host *upstream.Host, numEjections uint32) {
	l.write(event{
		ID:           uuid.NewString(),
		Time:         time.Now().UTC().Format(time.RFC3339Nano),
		Cluster:      clusterName(host),
		UpstreamURL:  host.Address(),
		Action:       "eject",
		Type:         "consecutive_5xx",
		NumEjections: numEjections,
	})
}

func (l *FileEventLogger) LogUneject(host *upstream.Host) {
	l.write(event{
		ID:          uuid.NewString(),
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Cluster:     clusterName(host),
		UpstreamURL: host.Address(),
		Action:      "uneject",
	})
}

func (l *FileEventLogger) write(e event) {
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(line)
}

func (l *FileEventLogger) Close() error { return l.file.Close() }

func clusterName(host *upstream.Host) string {
	if host.Cluster == nil {
		return ""
	}
	return host.Cluster.Name
}
