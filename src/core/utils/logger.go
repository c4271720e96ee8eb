package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ocr-server-go/src/configs"

	"github.com/sirupsen/logrus"
)

// Logger 进程级日志记录器，由 main 创建并注入各个服务
type Logger struct {
	name    string
	entry   *logrus.Logger
	logFile *os.File
}

// lineFormatter 输出 "时间 - 名称 - 级别 - 消息" 格式的单行日志
type lineFormatter struct {
	name string
}

var levelNames = map[logrus.Level]string{
	logrus.DebugLevel: "DEBUG",
	logrus.InfoLevel:  "INFO",
	logrus.WarnLevel:  "WARNING",
	logrus.ErrorLevel: "ERROR",
	logrus.FatalLevel: "CRITICAL",
	logrus.PanicLevel: "CRITICAL",
	logrus.TraceLevel: "DEBUG",
}

// Format 实现 logrus.Formatter
func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	ts := entry.Time.Format("2006-01-02 15:04:05.000")
	// 与 asctime 保持一致，毫秒前使用逗号
	ts = strings.Replace(ts, ".", ",", 1)

	name := f.name
	if tag, ok := entry.Data["tag"].(string); ok && tag != "" {
		name = name + "." + tag
	}
	fmt.Fprintf(&b, "%s - %s - %s - %s\n", ts, name, levelNames[entry.Level], entry.Message)
	return b.Bytes(), nil
}

// NewLogger 创建新的日志记录器，日志目录不存在时自动创建
func NewLogger(config *configs.Config) (*Logger, error) {
	if err := os.MkdirAll(config.Log.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %v", err)
	}

	logPath := filepath.Join(config.Log.LogDir, config.Log.LogFile)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %v", err)
	}

	var out io.Writer = file
	if config.Log.Console {
		out = io.MultiWriter(file, os.Stdout)
	}

	logger := newLogger(config.Log.LoggerName, config.Log.LogLevel, out)
	logger.logFile = file
	return logger, nil
}

// NewWriterLogger 创建写入任意 io.Writer 的日志记录器
func NewWriterLogger(name, level string, out io.Writer) *Logger {
	return newLogger(name, level, out)
}

func newLogger(name, level string, out io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&lineFormatter{name: name})

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return &Logger{name: name, entry: l}
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		return err
	}
	return nil
}

func format(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Debug 记录调试级别日志
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.entry.Debug(format(msg, args))
}

// Info 记录信息级别日志
func (l *Logger) Info(msg string, args ...interface{}) {
	l.entry.Info(format(msg, args))
}

// Warn 记录警告级别日志
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.entry.Warn(format(msg, args))
}

// Error 记录错误级别日志
func (l *Logger) Error(msg string, args ...interface{}) {
	l.entry.Error(format(msg, args))
}

// TaggedLogger 带标签的日志记录器
type TaggedLogger struct {
	entry *logrus.Entry
}

// WithTag 创建带标签的日志记录器
func (l *Logger) WithTag(tag string) *TaggedLogger {
	return &TaggedLogger{entry: l.entry.WithField("tag", tag)}
}

// Debug 记录带标签的调试级别日志
func (l *TaggedLogger) Debug(msg string, args ...interface{}) {
	l.entry.Debug(format(msg, args))
}

// Info 记录带标签的信息级别日志
func (l *TaggedLogger) Info(msg string, args ...interface{}) {
	l.entry.Info(format(msg, args))
}

// Warn 记录带标签的警告级别日志
func (l *TaggedLogger) Warn(msg string, args ...interface{}) {
	l.entry.Warn(format(msg, args))
}

// Error 记录带标签的错误级别日志
func (l *TaggedLogger) Error(msg string, args ...interface{}) {
	l.entry.Error(format(msg, args))
}
