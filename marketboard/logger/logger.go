package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand   LogType = "CMD"
	TypeDB        LogType = "DB"
	TypeSystem    LogType = "SYS"
	TypeError     LogType = "ERR"
	TypeAPI       LogType = "API"
	TypeIngestion LogType = "ING"
)

// Options configures a CustomHandler.
type Options struct {
	Level     slog.Leveler
	AddSource bool
	Color     bool
	Prefix    string
}

// CustomHandler prints one compact, optionally coloured line per record:
//
//	[Market] [15:04:05] [INFO] [ING] message key=value
type CustomHandler struct {
	opts   Options
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

func NewHandler(out io.Writer, opts Options) *CustomHandler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	if opts.Prefix == "" {
		opts.Prefix = "Market"
	}
	return &CustomHandler{
		opts: opts,
		out:  out,
		mu:   &sync.Mutex{},
	}
}

// New builds the process logger. format "json" selects slog's JSON handler.
func New(format string, level slog.Level, addSource bool) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: addSource}))
	}
	return slog.New(NewHandler(os.Stdout, Options{Level: level, AddSource: addSource, Color: true}))
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkipLog(&r) {
		return nil
	}

	levelColor, levelText := levelStyle(r.Level)

	message := r.Message
	if r.Level >= slog.LevelError {
		if loc := h.errorLocation(&r); loc != "" {
			message = fmt.Sprintf("%s (%s)", message, loc)
		}
		if details := attrString(&r, nil, "error"); details != "" {
			message = fmt.Sprintf("%s: %s", message, details)
		}
	}

	cmdName := attrString(&r, h.attrs, "name")
	userName := attrString(&r, h.attrs, "user_name")
	if cmdName != "" && userName != "" {
		message = fmt.Sprintf("%s [%s by %s]", message, cmdName, userName)
	}
	if status := attrString(&r, h.attrs, "status"); status != "" {
		message = fmt.Sprintf("%s [Status: %s]", message, status)
	}

	var b strings.Builder
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, attr := range h.attrs {
		if !isInternalAttr(attr.Key) {
			fmt.Fprintf(&b, " %s%s=%v", prefix, attr.Key, attr.Value)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if !isInternalAttr(a.Key) && a.Key != "error" {
			fmt.Fprintf(&b, " %s%s=%v", prefix, a.Key, a.Value)
		}
		return true
	})

	white, reset := "", ""
	if h.opts.Color {
		white, reset = colorWhite, colorReset
	} else {
		levelColor = ""
	}

	line := fmt.Sprintf("%s[%s] [%s] [%s%s%s] [%s] %s%s%s\n",
		white,
		h.opts.Prefix,
		r.Time.Format("15:04:05"),
		levelColor,
		levelText,
		white,
		logType(&r, h.attrs),
		message,
		b.String(),
		reset,
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line)
	return err
}

func levelStyle(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return colorRed, "ERROR"
	case level >= slog.LevelWarn:
		return colorYellow, "WARN"
	case level >= slog.LevelInfo:
		return colorGreen, "INFO"
	default:
		return colorPurple, "DEBUG"
	}
}

// disgo is chatty at debug level.
var skippedMessages = []string{
	"locking buckets",
	"unlocking buckets",
	"gateway event",
	"cleaning up bucket",
	"cleaned up rate limit buckets",
	"binary message received",
	"received gateway message",
	"locking gateway rate limiter",
	"unlocking gateway rate limiter",
	"sending gateway command",
	"new request",
	"new response",
	"locking rest bucket",
	"unlocking rest bucket",
	"rate limit response headers",
	"sending heartbeat",
}

func shouldSkipLog(r *slog.Record) bool {
	msg := strings.ToLower(r.Message)
	for _, skip := range skippedMessages {
		if strings.Contains(msg, skip) {
			return true
		}
	}
	return false
}

func logType(r *slog.Record, attrs []slog.Attr) LogType {
	switch attrString(r, attrs, "type") {
	case "cmd":
		return TypeCommand
	case "db":
		return TypeDB
	case "error":
		return TypeError
	case "api":
		return TypeAPI
	case "ingest":
		return TypeIngestion
	default:
		return TypeSystem
	}
}

func (h *CustomHandler) errorLocation(r *slog.Record) string {
	if loc := attrString(r, nil, "error_location"); loc != "" {
		return loc
	}
	if !h.opts.AddSource || r.PC == 0 {
		return ""
	}
	fs, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
	if fs.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(fs.File), fs.Line)
}

// attrString looks the key up on the record first, then on handler attrs.
func attrString(r *slog.Record, attrs []slog.Attr, key string) string {
	var value string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			value = a.Value.String()
			return false
		}
		return true
	})
	if value != "" {
		return value
	}
	for _, a := range attrs {
		if a.Key == key {
			return a.Value.String()
		}
	}
	return ""
}

func isInternalAttr(key string) bool {
	switch key {
	case "type", "name", "user_name", "status", "error_location":
		return true
	}
	return false
}
