package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu      sync.Mutex
	fileWriter map[string]*lumberjack.Logger
	stopRotate chan struct{}
	TimeFormat = "2006-01-02 15:04:05"
)

// initLogger 初始化日志系统
func initLogger(config Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(parseLevel(config.Level))

	if config.LevelFiles.IsEmpty() {
		config.LevelFiles = LevelFiles{{Level: INFO, Path: "logs/info.log"}}
	}

	for _, p := range config.LevelFiles.GetPaths() {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
	}

	logMu.Lock()
	defer logMu.Unlock()

	closeWriters()

	var mask uint16
	for _, entry := range config.LevelFiles {
		mask |= levelBit(parseLevel(entry.Level))
	}

	writers := make([]io.Writer, 0, len(config.LevelFiles)+1)
	fileWriter = make(map[string]*lumberjack.Logger, len(config.LevelFiles))
	for _, entry := range config.LevelFiles {
		lj := &lumberjack.Logger{
			Filename:   entry.Path,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		fileWriter[entry.Level] = lj
		writers = append(writers, &levelWriter{
			level:      parseLevel(entry.Level),
			configured: mask,
			Writer:     zerolog.ConsoleWriter{Out: lj, TimeFormat: TimeFormat, NoColor: true},
		})
	}

	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Caller().Logger()

	stopRotate = make(chan struct{})
	go rotateDaily(stopRotate)

	return nil
}

func levelBit(l zerolog.Level) uint16 {
	if l < 0 {
		return 0
	}
	return 1 << uint(l)
}

// levelWriter 只写入对应等级的日志
// INFO 文件兜底所有未单独配置文件的等级，ERROR 文件兜底 FATAL
type levelWriter struct {
	level      zerolog.Level
	configured uint16
	io.Writer
}

func (w *levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	switch {
	case level == w.level:
		return w.Writer.Write(p)
	case w.level == zerolog.InfoLevel && w.configured&levelBit(level) == 0:
		return w.Writer.Write(p)
	case w.level == zerolog.ErrorLevel && level == zerolog.FatalLevel && w.configured&levelBit(level) == 0:
		return w.Writer.Write(p)
	}
	return len(p), nil
}

func parseLevel(name string) zerolog.Level {
	l, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return l
}

// rotateDaily 每天零点轮转一次文件
func rotateDaily(stop chan struct{}) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
			logMu.Lock()
			for level, lj := range fileWriter {
				if err := lj.Rotate(); err != nil {
					log.Logger.Err(err).Str("level", level).Msg("rotate log file failed")
				}
			}
			logMu.Unlock()
		}
	}
}

func closeWriters() {
	if stopRotate != nil {
		close(stopRotate)
		stopRotate = nil
	}
	for level, lj := range fileWriter {
		if err := lj.Close(); err != nil {
			log.Logger.Err(err).Str("level", level).Msg("close log file failed")
		}
	}
	fileWriter = nil
}

// L 返回全局 logger
func L() zerolog.Logger {
	return log.Logger
}

func Info() *zerolog.Event {
	return log.Logger.Info()
}

func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

func Error() *zerolog.Event {
	return log.Logger.Error()
}

func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}

// Err 直接记录错误
func Err(err error) *zerolog.Event {
	return log.Logger.Err(err)
}

// Close 关闭日志文件
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	closeWriters()
}
