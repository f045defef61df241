package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/soyunomas/duff/internal/cache"
	"github.com/soyunomas/duff/internal/entities"
	"github.com/soyunomas/duff/internal/examiner"
	"github.com/soyunomas/duff/internal/grouper"
	"github.com/soyunomas/duff/internal/hasher"
	"github.com/soyunomas/duff/internal/logging"
	"github.com/soyunomas/duff/internal/scanner"
)

// ErrNoRoots se devuelve si no hay ningún directorio que recorrer.
var ErrNoRoots = errors.New("no search roots given")

// Options configura una ejecución del pipeline.
type Options struct {
	Roots    []string
	Filter   examiner.Filter
	Jobs     int      // Workers por fase; mínimo 1
	Excludes []string // Nombres de carpeta a ignorar

	Cache   *cache.Cache   // Hashes previos (opcional)
	Archive *cache.Archive // Destino de los hashes nuevos (opcional)

	// Observadores opcionales. Se llaman desde la goroutine que agrega
	// cada fase, nunca en paralelo.
	OnExamined  func(*entities.FileRecord)
	OnHashed    func(*entities.FileRecord)
	// OnHashStart se llama una vez al empezar la fase 3, con el número de
	// candidatos, aunque no haya ninguno.
	OnHashStart func(candidates int)

	KeepHashed bool // Devolver también todos los registros hasheados
	Logger     *logrus.Entry
}

// Stats resume la ejecución.
type Stats struct {
	Directories     int64
	Discovered      int64 // Rutas que no son directorio
	Accepted        int64 // Registros que pasaron los filtros
	SizeCandidates  int64 // Registros en cubos de tamaño con ≥2
	CacheHits       int64
	Hashed          int64 // Hashes calculados leyendo el archivo
	Vanished        int64
	HashErrors      int64
	TraversalErrors int64
	ExamineErrors   int64
	Groups          int64
	DuplicateFiles  int64 // Miembros de grupos menos uno por grupo

	ScanDuration time.Duration
	HashDuration time.Duration
	Duration     time.Duration
}

// Result es la salida del pipeline.
type Result struct {
	Stats  Stats
	Groups map[entities.GroupKey]*entities.DuplicateGroup
	Hashed []*entities.FileRecord // Solo si Options.KeepHashed
}

// Runner ejecuta el pipeline completo sobre un afero.Fs.
type Runner struct {
	fs   afero.Fs
	opts Options
	log  *logrus.Entry
}

// New crea un runner.
func New(fs afero.Fs, opts Options) *Runner {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{fs: fs, opts: opts, log: log.WithField("component", "engine")}
}

// Run recorre, filtra, agrupa y hashea. Cada fase de agrupación espera a
// que la anterior termine por completo: un cubo solo se sabe candidato
// cuando se vieron todos los archivos de ese tamaño.
func (r *Runner) Run() (*Result, error) {
	if len(r.opts.Roots) == 0 {
		return nil, ErrNoRoots
	}
	start := time.Now()
	var stats Stats

	// --- PASO 1: RECORRIDO + EXAMEN ---
	r.log.WithField("roots", r.opts.Roots).Info("Fase 1: Escaneando sistema de archivos...")
	walker := scanner.New(r.fs, scanner.Config{Jobs: r.opts.Jobs, Excludes: r.opts.Excludes}, r.opts.Logger)
	exam := examiner.New(r.fs, r.opts.Filter, r.opts.Jobs, r.opts.Logger)

	paths := walker.Walk(r.opts.Roots)
	records := exam.Run(paths)

	// --- PASO 2: AGRUPACIÓN POR TAMAÑO (barrera) ---
	buckets := grouper.BySize(records, r.opts.OnExamined)
	candidates := grouper.Flatten(buckets)

	ws, es := walker.Stats(), exam.Stats()
	stats.Directories = ws.Directories
	stats.Discovered = ws.Files
	stats.TraversalErrors = ws.Errors
	stats.Accepted = es.Accepted
	stats.ExamineErrors = es.Errors
	stats.SizeCandidates = int64(len(candidates))
	stats.ScanDuration = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"directories": stats.Directories,
		"files":       stats.Discovered,
		"accepted":    stats.Accepted,
		"candidates":  stats.SizeCandidates,
		"buckets":     len(buckets),
	}).Info("Fase 2: Candidatos por tamaño")

	// --- PASO 3: HASHING (barrera) ---
	hashStart := time.Now()
	if r.opts.OnHashStart != nil {
		r.opts.OnHashStart(len(candidates))
	}
	var hashed []*entities.FileRecord
	observe := r.opts.OnHashed
	if r.opts.KeepHashed {
		observe = func(rec *entities.FileRecord) {
			hashed = append(hashed, rec)
			if r.opts.OnHashed != nil {
				r.opts.OnHashed(rec)
			}
		}
	}

	hs := &hashStats{}
	groups := grouper.ByHash(r.processFullHash(candidates, hs), observe)
	r.opts.Archive.Flush()

	stats.CacheHits = hs.cacheHits.Load()
	stats.Hashed = hs.hashed.Load()
	stats.Vanished = hs.vanished.Load()
	stats.HashErrors = hs.errors.Load()
	stats.HashDuration = time.Since(hashStart)

	// --- PASO 4: FINALIZAR ---
	stats.Groups = int64(len(groups))
	for _, g := range groups {
		stats.DuplicateFiles += int64(len(g.Files) - 1)
	}
	stats.Duration = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"cache_hits": stats.CacheHits,
		"hashed":     stats.Hashed,
		"vanished":   stats.Vanished,
		"errors":     stats.HashErrors,
		"groups":     stats.Groups,
		"duplicates": stats.DuplicateFiles,
		"duration":   stats.Duration.String(),
	}).Info("Fase 3: Hashing terminado")

	return &Result{Stats: stats, Groups: groups, Hashed: hashed}, nil
}

type hashStats struct {
	cacheHits atomic.Int64
	hashed    atomic.Int64
	vanished  atomic.Int64
	errors    atomic.Int64
}

// processFullHash: workers que consultan la caché y, si no hay acierto,
// leen el archivo completo. Los archivos que fallan no salen del canal.
func (r *Runner) processFullHash(candidates []*entities.FileRecord, hs *hashStats) <-chan *entities.FileRecord {
	jobs := make(chan *entities.FileRecord, len(candidates))
	results := make(chan *entities.FileRecord, len(candidates))

	h := hasher.New(r.fs)
	var wg sync.WaitGroup

	for i := 0; i < r.opts.Jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if err := r.hashRecord(h, rec, hs); err != nil {
					continue
				}
				r.opts.Archive.Append(rec)
				results <- rec
			}
		}()
	}

	for _, rec := range candidates {
		jobs <- rec
	}
	close(jobs)

	// Monitor de cierre
	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// hashRecord rellena rec.Hash desde la caché o leyendo el archivo.
func (r *Runner) hashRecord(h *hasher.Hasher, rec *entities.FileRecord, hs *hashStats) error {
	if hash, ok := r.opts.Cache.Lookup(rec); ok {
		rec.Hash = hash
		hs.cacheHits.Add(1)
		return nil
	}

	hash, err := h.HashFile(rec.Path)
	if err != nil {
		reason := "unreadable"
		if errors.Is(err, hasher.ErrVanished) {
			reason = "vanished"
			hs.vanished.Add(1)
		} else {
			hs.errors.Add(1)
		}
		r.log.WithError(err).WithFields(logrus.Fields{
			"path":   rec.Path,
			"reason": reason,
		}).Warn("Archivo excluido de la comparación")
		return fmt.Errorf("hash %s: %w", rec.Path, err)
	}

	rec.Hash = hash
	hs.hashed.Add(1)
	return nil
}
