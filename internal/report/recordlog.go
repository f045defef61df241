package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/soyunomas/duff/internal/entities"
	"github.com/soyunomas/duff/internal/logging"
)

// RecordLog escribe una línea JSON por registro, con marcadores "#..."
// entre fases. No es seguro para uso concurrente: el motor llama a los
// observadores desde una sola goroutine.
type RecordLog struct {
	w      *bufio.Writer
	log    *logrus.Entry
	lines  int64
	failed int64
}

// NewRecordLog crea el log de registros sobre w.
func NewRecordLog(w io.Writer, log *logrus.Entry) *RecordLog {
	if log == nil {
		log = logging.Discard()
	}
	return &RecordLog{w: bufio.NewWriter(w), log: log.WithField("component", "recordlog")}
}

// Section escribe un marcador de fase.
func (l *RecordLog) Section(name string, body ...string) {
	fmt.Fprintf(l.w, "#%s\n", name)
	for _, line := range body {
		fmt.Fprintln(l.w, line)
	}
}

// Record serializa rec. Un fallo se registra y se sigue.
func (l *RecordLog) Record(rec *entities.FileRecord) {
	line, err := json.Marshal(rec)
	if err != nil {
		l.failed++
		l.log.WithError(err).WithField("path", rec.Path).Warn("Error de serialización")
		return
	}
	line = append(line, '\n')
	if _, err := l.w.Write(line); err != nil {
		l.failed++
		l.log.WithError(err).WithField("path", rec.Path).Warn("No se pudo escribir en el log")
		return
	}
	l.lines++
}

// Lines devuelve cuántos registros se escribieron.
func (l *RecordLog) Lines() int64 { return l.lines }

// Close vacía el buffer.
func (l *RecordLog) Close() error {
	if err := l.w.Flush(); err != nil {
		l.log.WithError(err).Warn("No se pudo vaciar el log")
		return err
	}
	return nil
}
