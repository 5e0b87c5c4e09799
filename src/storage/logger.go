package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
type Logger struct {
	filename    string        // 日志文件路径，为空表示写入外部writer
	file        *os.File      // 日志文件句柄
	out         io.Writer     // 实际写入目标
	mu          sync.Mutex    // 互斥锁，保证并发安全
	subscribers []chan string // 订阅者通道列表
	now         func() time.Time
}

// NewLogger 创建写入文件的日志记录器
func NewLogger(filename string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		filename: filename,
		file:     file,
		out:      io.MultiWriter(file, os.Stdout),
		now:      time.Now,
	}, nil
}

// NewWriterLogger 创建写入任意writer的日志记录器
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: w, now: time.Now}
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开日志文件，filename为空时沿用原路径
// 收到SIGHUP后调用，配合外部logrotate
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if filename == "" {
		filename = l.filename
	}
	if filename == "" {
		return fmt.Errorf("logger has no file to reopen")
	}

	if l.file != nil {
		_ = l.file.Close()
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.filename = filename
	l.file = file
	l.out = io.MultiWriter(file, os.Stdout)
	return nil
}

// Log 记录日志
func (l *Logger) Log(level LogLevel, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 格式化日志条目: [时间] 级别: 消息
	entry := fmt.Sprintf("[%s] %s: %s\n",
		l.now().Format("2006-01-02 15:04:05"),
		level.String(),
		message)

	if l.out != nil {
		_, _ = io.WriteString(l.out, entry)
	}

	// 通知所有订阅者
	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default: // 通道已满则跳过
		}
	}
}

// CheckRotate 日志文件超过maxSize时轮转
// maxSize 形如 "10 * 1024 * 1024"
func (l *Logger) CheckRotate(maxSize string) error {
	limit := eval(maxSize)
	if limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() <= limit {
		return nil
	}
	return l.rotateLocked()
}

func (l *Logger) rotateLocked() error {
	_ = l.file.Close()

	ext := filepath.Ext(l.filename)
	base := strings.TrimSuffix(l.filename, ext)
	archived := fmt.Sprintf("%s.%s%s", base, l.now().Format("20060102150405"), ext)
	renameErr := os.Rename(l.filename, archived)

	// 改名失败时继续写原文件
	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.file = nil
		l.out = os.Stdout
		return err
	}
	l.file = file
	l.out = io.MultiWriter(file, os.Stdout)
	if renameErr != nil {
		return fmt.Errorf("rotate log: %w", renameErr)
	}
	return nil
}

// Subscribe 订阅日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (l *Logger) Unsubscribe(sub <-chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ch := range l.subscribers {
		if ch == sub {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// eval 计算 "a * b * c" 形式的乘积，无法解析时返回0
func eval(expr string) int64 {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0
	}
	var result int64 = 1
	for _, part := range strings.Split(expr, "*") {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0
		}
		result *= num
	}
	return result
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) }
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }
