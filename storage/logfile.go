package storage

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	quorumbench "quorum-bench"
	"quorum-bench/logparse"
)

// SweepLog is the append-only, configuration-tagged log of a sweep
type SweepLog struct {
	mutex  sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	lines  int
}

// OpenSweepLog creates (or truncates) the sweep log at path
func OpenSweepLog(path string) (*SweepLog, error) {
	if err := ensureParent(path); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sweep log %s", path)
	}

	return &SweepLog{
		file:   file,
		writer: bufio.NewWriter(file),
		path:   path,
	}, nil
}

// Append tags every raw artifact line with the configuration and appends it.
// Lines that carry no latency record are skipped. Each call is flushed
// before it returns.
func (sl *SweepLog) Append(key quorumbench.ConfigurationKey, raw []string) (int, error) {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	written := 0
	for _, line := range raw {
		tagged, ok := logparse.FormatConfigLine(key, line)
		if !ok {
			continue
		}
		if _, err := sl.writer.WriteString(tagged + "\n"); err != nil {
			return written, errors.Wrapf(err, "failed to write %s", sl.path)
		}
		written++
	}

	if err := sl.writer.Flush(); err != nil {
		return written, errors.Wrapf(err, "failed to flush %s", sl.path)
	}
	sl.lines += written
	return written, nil
}

// Lines returns the number of lines written so far
func (sl *SweepLog) Lines() int {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	return sl.lines
}

// Path returns the location of the log
func (sl *SweepLog) Path() string {
	return sl.path
}

// Close flushes and closes the log
func (sl *SweepLog) Close() error {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	if err := sl.writer.Flush(); err != nil {
		sl.file.Close()
		return errors.Wrapf(err, "failed to flush %s", sl.path)
	}
	return errors.Wrapf(sl.file.Close(), "failed to close %s", sl.path)
}

// WriteBasicLog writes the raw lines of the basic run to path, replacing any previous content
func WriteBasicLog(path string, lines []string) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(strings.TrimRight(line, "\r\n"))
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errors.Wrapf(err, "failed to write basic log %s", path)
	}
	return nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}
