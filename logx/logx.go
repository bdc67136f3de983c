package logx

import (
	"bytes"
	"fmt"
	"io"
	"log/syslog"
	"sync"
	"time"
)

type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	mu         sync.Mutex
	out        io.Writer
	level      Level
	instaflush bool
	pending    bytes.Buffer
	sinks      []io.Writer
)

// Init wires the primary sink. With instaflush=false messages accumulate in
// an internal buffer until SetInstaflush(true) or Flush.
func Init(w io.Writer, lvl Level, flush bool) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	level = lvl
	instaflush = flush
	pending.Reset()
	sinks = nil
}

func SetLevel(lvl Level) {
	mu.Lock()
	level = lvl
	mu.Unlock()
}

// SetInstaflush toggles buffering; enabling it flushes anything pending.
func SetInstaflush(v bool) {
	mu.Lock()
	defer mu.Unlock()
	instaflush = v
	if v {
		flushLocked()
	}
}

func Flush() {
	mu.Lock()
	flushLocked()
	mu.Unlock()
}

// AttachSyslog fans every emitted line out to w in addition to the primary
// sink.
func AttachSyslog(w io.Writer) {
	mu.Lock()
	sinks = append(sinks, w)
	mu.Unlock()
}

// EnableSyslog connects the local syslog daemon as an extra sink.
func EnableSyslog(tag string) error {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return err
	}
	AttachSyslog(w)
	return nil
}

func Errorf(format string, args ...any) { emit(LevelError, "ERROR", format, args...) }
func Infof(format string, args ...any)  { emit(LevelInfo, "INFO", format, args...) }
func Debugf(format string, args ...any) { emit(LevelDebug, "DEBUG", format, args...) }
func Tracef(format string, args ...any) { emit(LevelTrace, "TRACE", format, args...) }

func emit(lvl Level, tag, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil || lvl > level {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"), tag, fmt.Sprintf(format, args...))
	for _, s := range sinks {
		_, _ = io.WriteString(s, line)
	}
	if instaflush {
		_, _ = io.WriteString(out, line)
		return
	}
	pending.WriteString(line)
}

func flushLocked() {
	if out != nil && pending.Len() > 0 {
		_, _ = out.Write(pending.Bytes())
	}
	pending.Reset()
}
