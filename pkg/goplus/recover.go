package goplus

import (
	"fmt"
	"runtime/debug"

	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

// Recover 捕获 panic 并记录堆栈，需直接 defer 调用
func Recover() {
	if r := recover(); r != nil {
		logPanic(r)
	}
}

// RecoverWith 捕获 panic，记录后交给 fn 处理，需直接 defer 调用
func RecoverWith(fn func(r any)) {
	if r := recover(); r != nil {
		logPanic(r)
		if fn != nil {
			fn(r)
		}
	}
}

// PanicError panic 转换得到的错误
func PanicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

func logPanic(r any) {
	logger.Error().
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", string(debug.Stack())).
		Msg("panic recovered")
}
