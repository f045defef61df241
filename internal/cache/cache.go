// Package cache carga hashes de una ejecución anterior y decide cuándo
// se pueden reutilizar sin volver a leer el archivo.
//
// Política de confianza: si coinciden ruta, tamaño y fecha de
// modificación (con precisión de nanosegundos) se asume que el contenido
// no cambió. Un reloj desajustado o un mtime retrocedido a mano puede
// provocar una reutilización falsa; no se intenta detectarlo.
package cache

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soyunomas/duff/internal/entities"
	"github.com/soyunomas/duff/internal/logging"
)

// maxLine acota el tamaño de una línea del archivo (rutas muy largas).
const maxLine = 1024 * 1024

// Entry es una línea del archivo de caché/archivo.
type Entry struct {
	Path    string    `json:"file_path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
	Hash    string    `json:"hash"`
}

// EntryFromRecord convierte un registro hasheado en una entrada.
func EntryFromRecord(rec *entities.FileRecord) Entry {
	return Entry{Path: rec.Path, Size: rec.Size, ModTime: rec.ModTime, Hash: rec.Hash}
}

// Matches indica si la entrada sirve para rec: misma ruta, mismo tamaño
// y mismo mtime.
func (e Entry) Matches(rec *entities.FileRecord) bool {
	return e.Path == rec.Path && e.Size == rec.Size && e.ModTime.Equal(rec.ModTime)
}

// Cache es de solo lectura una vez cargada; puede consultarse desde
// varias goroutines sin candados.
type Cache struct {
	bySize  map[int64][]Entry
	entries int
	skipped int
}

// Empty devuelve una caché sin entradas.
func Empty() *Cache {
	return &Cache{bySize: make(map[int64][]Entry)}
}

// Load lee todas las entradas de r (una por línea, JSON). Las líneas
// vacías, los comentarios (#) y las líneas malformadas se saltan.
func Load(r io.Reader, log *logrus.Entry) (*Cache, error) {
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("component", "cache")

	c := Empty()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			c.skipped++
			log.WithError(err).WithField("line", lineNo).Debug("Línea de caché malformada")
			continue
		}
		if e.Path == "" || e.Hash == "" {
			c.skipped++
			continue
		}
		c.add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hash cache: %w", err)
	}

	log.WithFields(logrus.Fields{
		"entries": c.entries,
		"skipped": c.skipped,
	}).Info("Caché de hashes cargada")
	return c, nil
}

func (c *Cache) add(e Entry) {
	c.bySize[e.Size] = append(c.bySize[e.Size], e)
	c.entries++
}

// Lookup busca un hash reutilizable para rec entre las entradas de su
// mismo tamaño.
func (c *Cache) Lookup(rec *entities.FileRecord) (string, bool) {
	if c == nil {
		return "", false
	}
	for _, e := range c.bySize[rec.Size] {
		if e.Matches(rec) {
			return e.Hash, true
		}
	}
	return "", false
}

// Len devuelve el número de entradas válidas.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries
}

// Skipped devuelve cuántas líneas se descartaron al cargar.
func (c *Cache) Skipped() int {
	if c == nil {
		return 0
	}
	return c.skipped
}
