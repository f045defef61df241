// Package logging centraliza la creación de loggers logrus para duff.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level traduce los flags de verbosidad de la CLI a un nivel logrus.
func Level(verbose, debug, silent bool) logrus.Level {
	switch {
	case silent:
		return logrus.ErrorLevel
	case debug:
		return logrus.DebugLevel
	case verbose:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}

// New crea el logger de la aplicación. Si out es nil se usa stderr.
func New(level logrus.Level, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// Discard devuelve una entrada que no escribe nada.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
