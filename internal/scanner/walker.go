package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/soyunomas/duff/internal/entities"
	"github.com/soyunomas/duff/internal/logging"
	"github.com/soyunomas/duff/internal/queue"
)

// pathBuffer es la capacidad del canal de rutas descubiertas.
const pathBuffer = 1024

// Config define las reglas para el escaneo.
type Config struct {
	Jobs     int      // Número de workers de recorrido
	Excludes []string // Nombres de carpeta a ignorar
}

// Stats resume un recorrido terminado.
type Stats struct {
	Directories int64
	Files       int64
	Errors      int64
}

// Walker recorre en paralelo varios árboles de directorios.
type Walker struct {
	fs         afero.Fs
	cfg        Config
	excludeMap map[string]struct{} // Optimización O(1)
	log        *logrus.Entry

	dirs   atomic.Int64
	files  atomic.Int64
	errors atomic.Int64
}

// New crea un walker sobre fs. Jobs < 1 se trata como 1.
func New(fs afero.Fs, cfg Config, log *logrus.Entry) *Walker {
	if cfg.Jobs < 1 {
		cfg.Jobs = 1
	}
	if log == nil {
		log = logging.Discard()
	}

	exMap := make(map[string]struct{}, len(cfg.Excludes))
	for _, e := range cfg.Excludes {
		exMap[e] = struct{}{}
	}

	return &Walker{
		fs:         fs,
		cfg:        cfg,
		excludeMap: exMap,
		log:        log.WithField("component", "walker"),
	}
}

// Walk siembra la cola global con las raíces y lanza cfg.Jobs workers.
// Devuelve un canal con las rutas de todo lo que no es directorio; el
// canal se cierra cuando todos los workers terminaron. No es
// reiniciable: una vez drenado no se puede volver a leer.
func (w *Walker) Walk(roots []string) <-chan string {
	out := make(chan string, pathBuffer)

	seed := DedupRoots(roots)
	global := queue.NewInjector[entities.SearchTask](seed...)

	w.log.WithFields(logrus.Fields{
		"roots": len(seed),
		"jobs":  w.cfg.Jobs,
	}).Debug("Iniciando recorrido de directorios")

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := queue.NewWorker[entities.SearchTask]()
			for {
				dir, ok := queue.FindTask(local, global)
				if !ok {
					return
				}
				w.listDir(dir, global, out)
				global.Done()
			}
		}()
	}

	// Monitor de cierre
	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// Stats devuelve los contadores. Solo es fiable cuando el canal de Walk
// ya se cerró.
func (w *Walker) Stats() Stats {
	return Stats{
		Directories: w.dirs.Load(),
		Files:       w.files.Load(),
		Errors:      w.errors.Load(),
	}
}

// listDir lista un directorio: los subdirectorios van a la cola global
// (no a la local) para repartir la carga; el resto sale por out.
func (w *Walker) listDir(dir string, global queue.Global[entities.SearchTask], out chan<- string) {
	f, err := w.fs.Open(dir)
	if err != nil {
		w.errors.Add(1)
		w.log.WithError(err).WithField("path", dir).Warn("No se pudo abrir el directorio")
		return
	}
	entries, err := f.Readdir(-1)
	f.Close()
	if err != nil {
		// Puede haber una lista parcial; procesamos lo que llegó
		w.errors.Add(1)
		w.log.WithError(err).WithField("path", dir).Warn("Error leyendo el directorio")
	}
	w.dirs.Add(1)

	for _, entry := range entries {
		if entry == nil {
			w.errors.Add(1)
			continue
		}
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if _, skip := w.excludeMap[entry.Name()]; skip {
				continue
			}
			global.Push(path)
			continue
		}

		// No seguimos enlaces a directorios: evita ciclos y visitas dobles
		if entry.Mode()&os.ModeSymlink != 0 {
			if target, err := w.fs.Stat(path); err == nil && target.IsDir() {
				w.log.WithField("path", path).Debug("Enlace simbólico a directorio ignorado")
				continue
			}
		}

		w.files.Add(1)
		out <- path
	}
}

// DedupRoots limpia las raíces, quita repetidas y las que cuelgan de otra
// raíz, para que ningún directorio se visite dos veces.
func DedupRoots(roots []string) []string {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(r))
	}
	sort.Strings(cleaned)

	var result []string
	for _, path := range cleaned {
		redundant := false
		for _, prev := range result {
			if path == prev || isPathUnder(path, prev) {
				redundant = true
				break
			}
		}
		if !redundant {
			result = append(result, path)
		}
	}
	return result
}

// isPathUnder indica si child cuelga de parent
func isPathUnder(child, parent string) bool {
	if parent == string(filepath.Separator) {
		return child != parent && strings.HasPrefix(child, parent)
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
