package entities

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// SearchTask es un directorio pendiente de recorrer.
type SearchTask = string

// FileRecord representa un archivo en disco con los metadatos necesarios.
// Hash queda vacío hasta que el Content Hasher (o la caché) lo rellena, y
// no se vuelve a tocar después.
type FileRecord struct {
	Path     string    `json:"file_path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mtime"`
	Hash     string    `json:"hash"`
	DeviceID uint64    `json:"device_id,omitempty"`
	Inode    uint64    `json:"inode,omitempty"`
}

// NewFileRecord crea un registro sin hash.
func NewFileRecord(path string, size int64, modTime time.Time) *FileRecord {
	return &FileRecord{Path: path, Size: size, ModTime: modTime}
}

// Key devuelve la clave compuesta (tamaño, hash) del registro.
func (f *FileRecord) Key() GroupKey {
	return GroupKey{Size: f.Size, Hash: f.Hash}
}

// Compare ordena por (tamaño, hash). Dos registros sin hash se comparan
// solo por tamaño.
func (f *FileRecord) Compare(other *FileRecord) int {
	if c := cmp.Compare(f.Size, other.Size); c != 0 {
		return c
	}
	return strings.Compare(f.Hash, other.Hash)
}

// Equal indica si ambos registros tienen el mismo (tamaño, hash).
func (f *FileRecord) Equal(other *FileRecord) bool {
	return f.Compare(other) == 0
}

func (f *FileRecord) String() string {
	return fmt.Sprintf("%d %s %s %s", f.Size, f.Hash, f.ModTime.UTC().Format(time.RFC3339Nano), f.Path)
}

// GroupKey identifica un grupo de duplicados.
type GroupKey struct {
	Size int64
	Hash string
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%d_%s", k.Size, k.Hash)
}

// Compare ordena claves por tamaño y luego por hash.
func (k GroupKey) Compare(other GroupKey) int {
	if c := cmp.Compare(k.Size, other.Size); c != 0 {
		return c
	}
	return strings.Compare(k.Hash, other.Hash)
}

// DuplicateGroup es un grupo final: mismo tamaño, mismo hash, al menos
// dos miembros, ordenados por ruta.
type DuplicateGroup struct {
	Key   GroupKey      `json:"-"`
	Size  int64         `json:"size"`
	Hash  string        `json:"hash"`
	Files []*FileRecord `json:"files"`
}

// Paths devuelve las rutas de los miembros en orden.
func (g *DuplicateGroup) Paths() []string {
	paths := make([]string, len(g.Files))
	for i, f := range g.Files {
		paths[i] = f.Path
	}
	return paths
}
