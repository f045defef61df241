// Package examiner obtiene los metadatos de cada ruta candidata y aplica
// los filtros de extensión y tamaño.
package examiner

import (
	"io/fs"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/soyunomas/duff/internal/entities"
	"github.com/soyunomas/duff/internal/logging"
)

// Wildcard desactiva el filtro de extensiones.
const Wildcard = "*"

// recordBuffer es la capacidad del canal de registros.
const recordBuffer = 1024

// Filter decide qué archivos pasan a la fase de agrupación.
type Filter struct {
	Exts    []string // Sufijos permitidos; vacío o ["*"] = todos
	MinSize int64    // Límite inferior inclusivo en bytes
	MaxSize int64    // Límite superior inclusivo; sin límite = math.MaxInt64
}

// DefaultFilter no filtra nada salvo los archivos vacíos.
func DefaultFilter() Filter {
	return Filter{Exts: []string{Wildcard}, MinSize: 0, MaxSize: math.MaxInt64}
}

// MatchExt compara el nombre del archivo contra la lista de sufijos.
func (f Filter) MatchExt(path string) bool {
	if len(f.Exts) == 0 || (len(f.Exts) == 1 && f.Exts[0] == Wildcard) {
		return true
	}
	name := filepath.Base(path)
	for _, ext := range f.Exts {
		if ext != "" && strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// MatchSize aplica el rango inclusivo. Los archivos vacíos nunca pasan.
func (f Filter) MatchSize(size int64) bool {
	if size <= 0 {
		return false
	}
	return size >= f.MinSize && size <= f.MaxSize
}

// Stats cuenta lo que pasó por el examinador.
type Stats struct {
	Examined   int64 // Rutas recibidas
	Accepted   int64 // Registros emitidos
	SkippedExt int64
	SkippedSz  int64 // Fuera de rango o vacíos
	Irregular  int64 // Sockets, fifos, dispositivos...
	Errors     int64
}

// Examiner es un map paralelo ruta -> FileRecord.
type Examiner struct {
	fs     afero.Fs
	filter Filter
	jobs   int
	log    *logrus.Entry

	examined   atomic.Int64
	accepted   atomic.Int64
	skippedExt atomic.Int64
	skippedSz  atomic.Int64
	irregular  atomic.Int64
	errors     atomic.Int64
}

// New crea un examinador con jobs workers (mínimo 1).
func New(fs afero.Fs, filter Filter, jobs int, log *logrus.Entry) *Examiner {
	if jobs < 1 {
		jobs = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Examiner{
		fs:     fs,
		filter: filter,
		jobs:   jobs,
		log:    log.WithField("component", "examiner"),
	}
}

// Examine devuelve el registro de path, o nil si no pasa los filtros.
// Un error significa que no se pudieron leer los metadatos.
func (e *Examiner) Examine(path string) (*entities.FileRecord, error) {
	e.examined.Add(1)

	// 1. Filtro de extensión (no necesita Stat)
	if !e.filter.MatchExt(path) {
		e.skippedExt.Add(1)
		return nil, nil
	}

	// 2. Metadatos (siguiendo enlaces simbólicos)
	info, err := e.fs.Stat(path)
	if err != nil {
		e.errors.Add(1)
		return nil, err
	}
	if !info.Mode().IsRegular() {
		e.irregular.Add(1)
		return nil, nil
	}

	// 3. Filtro de tamaño
	if !e.filter.MatchSize(info.Size()) {
		e.skippedSz.Add(1)
		return nil, nil
	}

	// 4. Construcción de la entidad
	rec := entities.NewFileRecord(path, info.Size(), info.ModTime())
	rec.DeviceID, rec.Inode = getSysInfo(info)

	e.accepted.Add(1)
	return rec, nil
}

// Run consume paths con e.jobs workers y devuelve el canal de
// registros, que se cierra cuando paths se cierra y se procesó todo. El
// orden de salida no está definido.
func (e *Examiner) Run(paths <-chan string) <-chan *entities.FileRecord {
	out := make(chan *entities.FileRecord, recordBuffer)

	var wg sync.WaitGroup
	for i := 0; i < e.jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				rec, err := e.Examine(path)
				if err != nil {
					e.log.WithError(err).WithField("path", path).Warn("No se pudieron leer los metadatos")
					continue
				}
				if rec != nil {
					out <- rec
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// Stats devuelve los contadores acumulados.
func (e *Examiner) Stats() Stats {
	return Stats{
		Examined:   e.examined.Load(),
		Accepted:   e.accepted.Load(),
		SkippedExt: e.skippedExt.Load(),
		SkippedSz:  e.skippedSz.Load(),
		Irregular:  e.irregular.Load(),
		Errors:     e.errors.Load(),
	}
}

// getSysInfo extrae DeviceID e Inode de forma "segura".
func getSysInfo(info fs.FileInfo) (uint64, uint64) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return uint64(stat.Dev), uint64(stat.Ino)
}
