package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	logger   zerolog.Logger
	initOnce sync.Once
)

// initLogger sets up a console logger on stderr at INFO.
func initLogger() {
	initOnce.Do(func() {
		logger = newLogger(os.Stderr, zerolog.InfoLevel)
	})
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

// SetLevel changes the minimum level that gets written.
func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(toZerolog(l))
}

// SetOutput redirects log lines to w, keeping the current level.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, logger.GetLevel())
}

// ParseLevel accepts debug, info or error in any case.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelError:
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func Debug(msg string, kv ...any) {
	write(zerolog.DebugLevel, nil, msg, kv)
}

func Info(msg string, kv ...any) {
	write(zerolog.InfoLevel, nil, msg, kv)
}

func Error(msg string, err error, kv ...any) {
	write(zerolog.ErrorLevel, err, msg, kv)
}

func write(lvl zerolog.Level, err error, msg string, kv []any) {
	initLogger()
	mu.Lock()
	l := logger
	mu.Unlock()

	ev := l.WithLevel(lvl)
	if ev == nil {
		return
	}
	if err != nil {
		ev = ev.Err(err)
	}
	// kv is key, value, key, value... A trailing key without a value or a
	// non-string key is dropped.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
