package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LogWriter appends Records to a JSONL action log. Each write is flushed and
// synced so a crash loses at most the in-flight action.
type LogWriter struct {
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
	seq    int
}

// NewLogWriter creates a log writer that appends to the given file.
func NewLogWriter(path string) (*LogWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}
	w := bufio.NewWriter(f)
	return &LogWriter{
		file:   f,
		writer: w,
		enc:    json.NewEncoder(w),
	}, nil
}

// Append writes one record, assigning the next sequence number, and flushes
// to disk before returning.
func (lw *LogWriter) Append(rec *Record) error {
	rec.Seq = lw.seq
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := lw.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}
	if err := lw.writer.Flush(); err != nil {
		return fmt.Errorf("flush action log: %w", err)
	}
	if err := lw.file.Sync(); err != nil {
		return fmt.Errorf("sync action log: %w", err)
	}
	lw.seq++
	return nil
}

// Close flushes and closes the log file.
func (lw *LogWriter) Close() error {
	if err := lw.writer.Flush(); err != nil {
		return err
	}
	return lw.file.Close()
}

// ReadLog loads all records from a JSONL action log, in order. Records must
// carry strictly increasing sequence numbers; a gap or reorder means the log
// was tampered with or truncated mid-write.
func ReadLog(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", line, err)
		}
		if rec.Seq != len(records) {
			return nil, fmt.Errorf("log line %d: sequence %d out of order (want %d)", line, rec.Seq, len(records))
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read action log: %w", err)
	}
	return records, nil
}
