package framework

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// NewLogger returns an entry writing info and below to stdout, warnings and
// errors to stderr.
func NewLogger(level string) (*logrus.Entry, error) {
	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(io.Discard)
	log.Logger.AddHook(&writer.Hook{
		Writer:    os.Stdout,
		LogLevels: []logrus.Level{logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel},
	})
	log.Logger.AddHook(&writer.Hook{
		Writer:    os.Stderr,
		LogLevels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel},
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.Logger.SetLevel(lvl)
	return log, nil
}
