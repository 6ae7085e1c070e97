package logger

import "go.uber.org/zap"

var Log = zap.NewNop()

func Init(debug bool) {
	var (
		l   *zap.Logger
		err error
	)

	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return
	}

	Log = l
}

func Sync() {
	_ = Log.Sync()
}
