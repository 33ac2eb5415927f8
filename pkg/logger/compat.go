package logger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// 格式化日志，调用位置跳过本包一层

func Infof(format string, v ...any) {
	logf(log.Logger.Info(), format, v...)
}

func Debugf(format string, v ...any) {
	logf(log.Logger.Debug(), format, v...)
}

func Warnf(format string, v ...any) {
	logf(log.Logger.Warn(), format, v...)
}

func Errorf(format string, v ...any) {
	logf(log.Logger.Error(), format, v...)
}

func logf(event *zerolog.Event, format string, args ...any) {
	if event == nil {
		return
	}
	event.CallerSkipFrame(2).Msgf(format, args...)
}

// GormWriter 将 gorm 日志转到 zerolog
type GormWriter struct{}

func (GormWriter) Printf(format string, args ...any) {
	logf(log.Logger.Warn(), format, args...)
}
