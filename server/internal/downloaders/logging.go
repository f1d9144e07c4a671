package downloaders

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

type LogConsumer interface {
	GetName() string
	ParseLogEntry(entry []byte)
}

// JSONLogConsumer feeds progress template lines to a tracker and every
// other line to the leveled logger.
type JSONLogConsumer struct {
	tracker *ProgressTracker
	log     Logger
}

func NewJSONLogConsumer(tracker *ProgressTracker, log Logger) *JSONLogConsumer {
	if log == nil {
		log = NewLogSink(slog.Default(), 0)
	}
	return &JSONLogConsumer{tracker: tracker, log: log}
}

func (j *JSONLogConsumer) GetName() string { return "json-log-consumer" }

func (j *JSONLogConsumer) ParseLogEntry(entry []byte) {
	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			j.parseTemplate(trimmed, fields)
			return
		}
	}

	dispatch(j.log, string(trimmed))
}

func (j *JSONLogConsumer) parseTemplate(entry []byte, fields map[string]json.RawMessage) {
	if _, ok := fields["filepath"]; ok {
		var postprocess PostprocessTemplate
		if err := json.Unmarshal(entry, &postprocess); err == nil {
			j.log.Debug("postprocessed " + postprocess.FilePath)
			j.tracker.Postprocessed(postprocess)
		}
		return
	}

	var progress ProgressTemplate
	if err := json.Unmarshal(entry, &progress); err != nil {
		j.log.Debug(string(entry))
		return
	}
	j.tracker.Update(progress)
}

// dispatch routes a yt-dlp text line by its level prefix.
func dispatch(l Logger, line string) {
	switch {
	case line == "":
	case strings.HasPrefix(line, "ERROR:"):
		l.Error(strings.TrimSpace(strings.TrimPrefix(line, "ERROR:")))
	case strings.HasPrefix(line, "WARNING:"):
		l.Warning(strings.TrimSpace(strings.TrimPrefix(line, "WARNING:")))
	case strings.HasPrefix(line, "[debug]"):
		l.Debug(strings.TrimSpace(strings.TrimPrefix(line, "[debug]")))
	default:
		l.Info(line)
	}
}

const DefaultLogLines = 20

// LogSink writes transfer messages to slog and keeps the most recent ones
// for display.
type LogSink struct {
	logger *slog.Logger
	size   int

	mu    sync.Mutex
	lines []string
}

func NewLogSink(logger *slog.Logger, size int) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = DefaultLogLines
	}
	return &LogSink{logger: logger, size: size}
}

func (s *LogSink) Debug(msg string) {
	s.logger.Debug(msg)
	s.keep("DEBUG: " + msg)
}

func (s *LogSink) Info(msg string) {
	s.logger.Info(msg)
	s.keep("INFO: " + msg)
}

func (s *LogSink) Warning(msg string) {
	s.logger.Warn(msg)
	s.keep("WARNING: " + msg)
}

func (s *LogSink) Error(msg string) {
	s.logger.Error(msg)
	s.keep("ERROR: " + msg)
}

func (s *LogSink) keep(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, line)
	if len(s.lines) > s.size {
		s.lines = slices.Delete(s.lines, 0, len(s.lines)-s.size)
	}
}

// Lines returns the retained messages, oldest first.
func (s *LogSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.lines)
}

func (s *LogSink) Reset() {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
}
