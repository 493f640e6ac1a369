package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Service   string `json:"service,omitempty"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Options struct {
	Service string
	Dir     string
	Level   string
}

type Logger struct {
	mu       sync.Mutex
	service  string
	minLevel LogLevel
	terminal io.Writer
	jsonOut  io.Writer
	logFile  *os.File
}

// NewLogger writes coloured lines to stdout and JSON lines to
// <dir>/<service>-<date>.log. If the file cannot be opened it keeps
// logging to stdout only.
func NewLogger(opts Options) *Logger {
	if opts.Service == "" {
		opts.Service = "ticketcodes"
	}
	if opts.Dir == "" {
		opts.Dir = "logs"
	}

	l := &Logger{
		service:  opts.Service,
		minLevel: ParseLevel(opts.Level),
		terminal: os.Stdout,
	}

	fileName := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", opts.Service, time.Now().Format("2006-01-02")))
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		l.Warn("LOGGER", fmt.Sprintf("Failed to create log directory %s: %v", opts.Dir, err))
		return l
	}
	logFile, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.Warn("LOGGER", fmt.Sprintf("Failed to open log file %s: %v", fileName, err))
		return l
	}
	l.logFile = logFile
	l.jsonOut = logFile

	l.Info("LOGGER", fmt.Sprintf("Log file: %s", fileName))
	return l
}

// NewWithWriter emits JSON lines only to w. Used by tests and tools.
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{
		service:  "test",
		minLevel: ParseLevel(level),
		jsonOut:  w,
	}
}

// NewDiscard drops everything.
func NewDiscard() *Logger {
	return NewWithWriter(io.Discard, "FATAL")
}

func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if l == nil || level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Service:   l.service,
		Level:     levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.terminal != nil {
		fmt.Fprint(l.terminal, formatTerminalOutput(entry))
	}
	if l.jsonOut != nil {
		jsonBytes, _ := json.Marshal(entry)
		l.jsonOut.Write(append(jsonBytes, '\n'))
	}
}

func formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	var levelColor, categoryColor *color.Color
	switch entry.Level {
	case "DEBUG":
		levelColor = color.New(color.FgCyan)
		categoryColor = color.New(color.FgCyan, color.Bold)
	case "INFO":
		levelColor = color.New(color.FgGreen)
		categoryColor = color.New(color.FgGreen, color.Bold)
	case "WARN":
		levelColor = color.New(color.FgYellow)
		categoryColor = color.New(color.FgYellow, color.Bold)
	default:
		levelColor = color.New(color.FgRed)
		categoryColor = color.New(color.FgRed, color.Bold)
	}

	out := fmt.Sprintf("%s %s %s %s",
		color.New(color.FgBlue).Sprint(timestamp),
		levelColor.Sprintf("%-5s", entry.Level),
		categoryColor.Sprintf("[%-10s]", entry.Category),
		entry.Message,
	)
	if entry.File != "" && entry.Line > 0 {
		out += color.New(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
	}
	return out + "\n"
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Specialized logging methods for different components
func (l *Logger) LogOrder(action, orderID, message string) {
	l.log(INFO, "ORDER", fmt.Sprintf("[%s] %s - %s", action, orderID, message))
}

func (l *Logger) LogPayment(action, reference, message string) {
	l.log(INFO, "PAYMENT", fmt.Sprintf("[%s] %s - %s", action, reference, message))
}

func (l *Logger) LogAllocation(orderID string, requested, assigned int, insufficient bool) {
	level := INFO
	if insufficient {
		level = WARN
	}
	l.log(level, "ALLOCATION", fmt.Sprintf("order %s requested=%d assigned=%d insufficient=%t", orderID, requested, assigned, insufficient))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration.Round(time.Microsecond)))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.log(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.log(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.log(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

// Printf lets the logger stand in where a printf-style logger is expected.
func (l *Logger) Printf(format string, args ...any) {
	l.log(WARN, "APP", fmt.Sprintf(format, args...))
}

func (l *Logger) Close() {
	if l == nil || l.logFile == nil {
		return
	}
	l.Info("LOGGER", "Closing log file")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logFile.Close()
	l.logFile = nil
	l.jsonOut = nil
}
