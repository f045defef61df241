package grouper

import (
	"slices"
	"strings"

	"github.com/soyunomas/duff/internal/entities"
)

// sortByPath ordena los miembros de un grupo alfabéticamente.
func sortByPath(files []*entities.FileRecord) {
	slices.SortFunc(files, func(a, b *entities.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
}

// sortRecords ordena por (tamaño, hash) y desempata por ruta para que el
// resultado no dependa del orden de llegada.
func sortRecords(files []*entities.FileRecord) {
	slices.SortFunc(files, func(a, b *entities.FileRecord) int {
		if c := a.Compare(b); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
}

// Order define el orden de presentación de los grupos.
type Order int

const (
	// LargestFirst: más bytes recuperables primero (por defecto)
	LargestFirst Order = iota
	// SmallestFirst: tamaño ascendente
	SmallestFirst
)

// SortedGroups devuelve los grupos en un orden estable: por tamaño según
// order y, a igual tamaño, por hash.
func SortedGroups(groups map[entities.GroupKey]*entities.DuplicateGroup, order Order) []*entities.DuplicateGroup {
	out := make([]*entities.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}

	slices.SortFunc(out, func(a, b *entities.DuplicateGroup) int {
		if a.Size != b.Size {
			if order == SmallestFirst {
				return compareInt(a.Size, b.Size)
			}
			return compareInt(b.Size, a.Size)
		}
		// Desempate determinista
		return strings.Compare(a.Hash, b.Hash)
	})
	return out
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
