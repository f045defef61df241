package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/vectorio"
	"github.com/sirupsen/logrus"

	"github.com/soyunomas/duff/internal/entities"
	"github.com/soyunomas/duff/internal/logging"
)

// archiveBatch es cuántas líneas se acumulan antes de escribir. Queda muy
// por debajo de IOV_MAX (1024 en Linux).
const archiveBatch = 64

// fdWriter lo cumplen los *os.File: permite escribir el lote entero con
// un solo writev.
type fdWriter interface {
	io.Writer
	Fd() uintptr
}

// Archive añade entradas (ruta, tamaño, mtime, hash) para ejecuciones
// futuras. Es seguro para uso concurrente. Los fallos de escritura se
// registran y no detienen la ejecución.
type Archive struct {
	mu      sync.Mutex
	w       io.Writer
	pending [][]byte
	log     *logrus.Entry

	written atomic.Int64
	failed  atomic.Int64
}

// NewArchive crea un archivo de hashes que escribe en w.
func NewArchive(w io.Writer, log *logrus.Entry) *Archive {
	if log == nil {
		log = logging.Discard()
	}
	return &Archive{
		w:       w,
		pending: make([][]byte, 0, archiveBatch),
		log:     log.WithField("component", "archive"),
	}
}

// Append serializa rec y lo encola para escritura.
func (a *Archive) Append(rec *entities.FileRecord) {
	if a == nil {
		return
	}
	line, err := json.Marshal(EntryFromRecord(rec))
	if err != nil {
		a.failed.Add(1)
		a.log.WithError(err).WithField("path", rec.Path).Warn("Error de serialización")
		return
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, line)
	if len(a.pending) >= archiveBatch {
		a.flushLocked()
	}
}

// Flush escribe lo pendiente.
func (a *Archive) Flush() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked()
}

// Written devuelve cuántas líneas llegaron al destino.
func (a *Archive) Written() int64 {
	if a == nil {
		return 0
	}
	return a.written.Load()
}

// Failed devuelve cuántas líneas se perdieron.
func (a *Archive) Failed() int64 {
	if a == nil {
		return 0
	}
	return a.failed.Load()
}

func (a *Archive) flushLocked() {
	if len(a.pending) == 0 {
		return
	}
	n := len(a.pending)
	if err := a.writeLines(a.pending); err != nil {
		a.failed.Add(int64(n))
		a.log.WithError(err).WithField("lines", n).Warn("No se pudo escribir en el archivo de hashes")
	} else {
		a.written.Add(int64(n))
	}
	clear(a.pending)
	a.pending = a.pending[:0]
}

func (a *Archive) writeLines(lines [][]byte) error {
	fw, ok := a.w.(fdWriter)
	if !ok {
		for _, line := range lines {
			if _, err := a.w.Write(line); err != nil {
				return err
			}
		}
		return nil
	}

	total := 0
	iovecs := make([]syscall.Iovec, 0, len(lines))
	for _, line := range lines {
		iov := syscall.Iovec{Base: &line[0]}
		iov.SetLen(len(line))
		iovecs = append(iovecs, iov)
		total += len(line)
	}

	nw, err := vectorio.WritevRaw(fw.Fd(), iovecs)
	if err != nil {
		return fmt.Errorf("writev failed: %w", err)
	}
	if nw < total {
		// Escritura parcial: completamos el resto de forma secuencial
		return writeRemainder(fw, lines, nw)
	}
	return nil
}

// writeRemainder escribe lo que queda de lines tras los primeros skip
// bytes.
func writeRemainder(w io.Writer, lines [][]byte, skip int) error {
	for _, line := range lines {
		if skip >= len(line) {
			skip -= len(line)
			continue
		}
		if _, err := w.Write(line[skip:]); err != nil {
			return err
		}
		skip = 0
	}
	return nil
}
