// Package logparse turns benchmark latency logs into typed records.
//
// Basic lines are matched against an ordered list of recognizers, one per
// historical log format. The first recognizer whose pattern matches and whose
// latency parses wins; lines nobody recognizes are dropped without error.
package logparse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	quorumbench "quorum-bench"
)

// ErrNoData is returned when a referenced log file does not exist.
var ErrNoData = errors.New("no latency data")

const maxLineSize = 1024 * 1024

type recognizer struct {
	name    string
	pattern *regexp.Regexp
	// submatch indexes; key is optional (0 when not captured)
	op, key, latency int
}

// Priority order matters: the bracketed form is tried before the bare form,
// and the unit-less form is the last resort.
var recognizers = []recognizer{
	{
		name:    "timestamped",
		pattern: regexp.MustCompile(`\[.*?\]\s+\b((?i:GET|PUT))\s+key=(\S+)\s+latency=([\d.]+)ms`),
		op:      1, key: 2, latency: 3,
	},
	{
		name:    "plain",
		pattern: regexp.MustCompile(`\b((?i:GET|PUT))\s+key=(\S+)\s+latency=([\d.]+)ms`),
		op:      1, key: 2, latency: 3,
	},
	{
		name:    "minimal",
		pattern: regexp.MustCompile(`\b((?i:GET|PUT))\s+key=(\S+)\s+latency=([\d.]+)`),
		op:      1, key: 2, latency: 3,
	},
}

var configPattern = regexp.MustCompile(
	`\[([^\]\s]+)\]\s+\b((?i:GET|PUT))\s+key=\S+\s+latency=([\d.]+)ms\s+N=(\d+)\s+W=(\d+)\s+R=(\d+)`,
)

type match struct {
	format string
	key    string
	record quorumbench.LatencyRecord
}

func matchLine(line string) (match, bool) {
	for _, rc := range recognizers {
		groups := rc.pattern.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		op, ok := quorumbench.ParseOperation(groups[rc.op])
		if !ok {
			continue
		}
		latency, err := strconv.ParseFloat(groups[rc.latency], 64)
		if err != nil || latency < 0 {
			continue
		}
		m := match{
			format: rc.name,
			record: quorumbench.LatencyRecord{Operation: op, LatencyMs: latency},
		}
		if rc.key > 0 {
			m.key = groups[rc.key]
		}
		return m, true
	}
	return match{}, false
}

// ParseLine extracts a latency record from a basic log line.
func ParseLine(line string) (quorumbench.LatencyRecord, bool) {
	m, ok := matchLine(line)
	return m.record, ok
}

// LineFormat returns the name of the recognizer that accepts line, or "" if none does.
func LineFormat(line string) string {
	m, _ := matchLine(line)
	return m.format
}

// ParseLines parses raw artifact lines, skipping the ones that carry no record.
func ParseLines(lines []string) []quorumbench.LatencyRecord {
	records := make([]quorumbench.LatencyRecord, 0, len(lines))
	for _, line := range lines {
		if rec, ok := ParseLine(line); ok {
			records = append(records, rec)
		}
	}
	return records
}

// ParseConfigLine extracts a configuration-tagged record. All six fields must
// be present; anything less is not a match.
func ParseConfigLine(line string) (quorumbench.TaggedRecord, bool) {
	groups := configPattern.FindStringSubmatch(line)
	if groups == nil {
		return quorumbench.TaggedRecord{}, false
	}
	op, ok := quorumbench.ParseOperation(groups[2])
	if !ok {
		return quorumbench.TaggedRecord{}, false
	}
	latency, err := strconv.ParseFloat(groups[3], 64)
	if err != nil || latency < 0 {
		return quorumbench.TaggedRecord{}, false
	}
	var quorum [3]int
	for i := range quorum {
		v, err := strconv.Atoi(groups[4+i])
		if err != nil {
			return quorumbench.TaggedRecord{}, false
		}
		quorum[i] = v
	}
	return quorumbench.TaggedRecord{
		Key: quorumbench.ConfigurationKey{
			Name: groups[1],
			N:    quorum[0],
			W:    quorum[1],
			R:    quorum[2],
		},
		Record: quorumbench.LatencyRecord{Operation: op, LatencyMs: latency},
	}, true
}

// FormatConfigLine renders a raw artifact line in the configuration-tagged
// form. The output is canonical, so it parses back with ParseConfigLine even
// when the raw line used the unit-less format. Lines without a record are rejected.
func FormatConfigLine(key quorumbench.ConfigurationKey, raw string) (string, bool) {
	m, ok := matchLine(raw)
	if !ok {
		return "", false
	}
	token := m.key
	if token == "" {
		token = "-"
	}
	return fmt.Sprintf("[%s] %s key=%s latency=%sms N=%d W=%d R=%d",
		key.Name,
		m.record.Operation,
		token,
		strconv.FormatFloat(m.record.LatencyMs, 'f', -1, 64),
		key.N, key.W, key.R,
	), true
}

// ReadBasicLog reads every record from a basic log file. A missing file yields ErrNoData.
func ReadBasicLog(path string) ([]quorumbench.LatencyRecord, error) {
	var records []quorumbench.LatencyRecord
	err := scanFile(path, func(line string) {
		if rec, ok := ParseLine(line); ok {
			records = append(records, rec)
		}
	})
	return records, err
}

// ReadConfigLog reads every tagged record from a sweep log file. A missing file yields ErrNoData.
func ReadConfigLog(path string) ([]quorumbench.TaggedRecord, error) {
	var records []quorumbench.TaggedRecord
	err := scanFile(path, func(line string) {
		if rec, ok := ParseConfigLine(line); ok {
			records = append(records, rec)
		}
	})
	return records, err
}

// ReadLines returns the non-empty lines of a file, trimmed.
func ReadLines(path string) ([]string, error) {
	var lines []string
	err := scanFile(path, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	})
	return lines, err
}

func scanFile(path string, fn func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoData
		}
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	return errors.Wrapf(scan(f, fn), "read %s", path)
}

func scan(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return scanner.Err()
}
