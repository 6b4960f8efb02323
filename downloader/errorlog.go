package downloader

import (
	"sync"

	"github.com/sirupsen/logrus"

	"novel-epub/utils"
)

// ErrorLog appends failed chapter URLs to a file, one per line.
// The file and its directory are created on the first failure.
type ErrorLog struct {
	path string
	log  *logrus.Entry
	mu   sync.Mutex
}

func NewErrorLog(path string, log *logrus.Entry) *ErrorLog {
	return &ErrorLog{path: path, log: log}
}

func (e *ErrorLog) Record(url string) {
	if e == nil || e.path == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := utils.AppendLines(e.path, []string{url}); err != nil {
		e.log.Errorf("Failed to write error log: %v", err)
	}
}
