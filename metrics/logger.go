package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Logger interface {
	Log(info *RunInfo)
}

// StdoutLogger writes run metrics through the application logger.
type StdoutLogger struct {
	log *zap.SugaredLogger
}

func NewStdoutLogger(log *zap.SugaredLogger) *StdoutLogger {
	return &StdoutLogger{log: log}
}

func (l *StdoutLogger) Log(info *RunInfo) {
	infoStr, err := info.ToJSON()
	if err == nil {
		l.log.Info(strings.TrimSpace(infoStr))
	} else {
		l.log.Errorf("StdoutLogger: error: %v", err)
	}
}

const defaultQueueSize = 200
const defaultLogWriters = 1
const defaultMaxLogFileSize = 64 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger appends run metrics as JSON lines to rotated files in LogDir.
type FileLogger struct {
	MetricsQueue   chan *RunInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool
	log            *zap.SugaredLogger
	done           chan struct{}
}

func NewFileLogger(log *zap.SugaredLogger, logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *RunInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
		log:            log,
		done:           make(chan struct{}, defaultLogWriters),
	}

	for i := 0; i < defaultLogWriters; i++ {
		go logger.startLogWriter(i)
	}

	return logger
}

func (l *FileLogger) Log(info *RunInfo) {
	l.MetricsQueue <- info
}

// Close flushes the queue and waits for the writers to exit.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	for i := 0; i < defaultLogWriters; i++ {
		<-l.done
	}
}

func (l *FileLogger) startLogWriter(idx int) {
	defer func() { l.done <- struct{}{} }()
	f, err := l.openLogFile(idx)
	if err != nil {
		l.log.Errorw("metrics log open", "writer", idx, "error", err)
		return
	}
	defer func() { f.Close() }()

	for info := range l.MetricsQueue {
		line, err := info.ToJSON()
		if err != nil {
			l.log.Errorw("metrics encoding", "writer", idx, "run_id", info.RunID, "error", err)
			continue
		}

		f, err = l.tryRotateLogFile(f, idx)
		if err != nil {
			continue
		}
		if _, err := f.WriteString(line); err != nil {
			l.log.Errorw("metrics write", "writer", idx, "error", err)
			continue
		}
		f.Sync()
	}
}

func (l *FileLogger) logFilePath(idx int) string {
	return filepath.Join(l.LogDir, fmt.Sprintf("runs%d.jsonl", idx))
}

func (l *FileLogger) openLogFile(idx int) (*os.File, error) {
	return os.OpenFile(l.logFilePath(idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// rotationTarget returns the first free rotated file name, or the
// oldest rotated file once MaxLogFiles are in use.
func (l *FileLogger) rotationTarget(idx int) (path string, reuse bool, err error) {
	current := l.logFilePath(idx)
	for i := 0; i < l.MaxLogFiles; i++ {
		p := fmt.Sprintf("%s.%d", current, i)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p, false, nil
		}
	}

	rotated, err := filepath.Glob(current + ".*")
	if err != nil {
		return "", false, err
	}
	path = current + ".0"
	var oldest time.Time
	for _, p := range rotated {
		st, err := os.Stat(p)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		if oldest.IsZero() || st.ModTime().Before(oldest) {
			path, oldest = p, st.ModTime()
		}
	}
	return path, true, nil
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File, idx int) (*os.File, error) {
	info, err := currFile.Stat()
	if err != nil {
		l.log.Errorw("metrics log rotation", "writer", idx, "error", err)
		return currFile, nil
	}
	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	target, reuse, err := l.rotationTarget(idx)
	if err != nil {
		l.log.Errorw("metrics log rotation", "writer", idx, "error", err)
		return currFile, nil
	}
	if reuse {
		if l.Verbose {
			l.log.Infow("maximum number of metrics logs reached, overwriting", "writer", idx, "file", target)
		}
		if err := os.Remove(target); err != nil {
			l.log.Errorw("metrics log rotation", "writer", idx, "error", err)
			return currFile, nil
		}
	}

	currFile.Close()
	if err := os.Rename(l.logFilePath(idx), target); err != nil {
		l.log.Errorw("metrics log rotation", "writer", idx, "error", err)
	} else if l.Verbose {
		l.log.Infow("metrics log rotated", "writer", idx, "file", target)
	}

	f, err := l.openLogFile(idx)
	if err != nil {
		l.log.Errorw("metrics log rotation", "writer", idx, "error", err)
		return nil, err
	}
	return f, nil
}
