// Package grouper agrupa registros por tamaño y por (tamaño, hash).
//
// Cada función es el único consumidor de su canal y la única dueña de su
// mapa: no hay mutación concurrente del estado de los grupos.
package grouper

import (
	"github.com/soyunomas/duff/internal/entities"
)

// BySize consume todo el canal y agrupa por tamaño exacto. Solo devuelve
// los cubos con al menos dos miembros: tamaños distintos nunca pueden
// ser duplicados. observe (opcional) ve cada registro al llegar, desde
// esta misma goroutine.
func BySize(records <-chan *entities.FileRecord, observe func(*entities.FileRecord)) map[int64][]*entities.FileRecord {
	buckets := make(map[int64][]*entities.FileRecord)
	for rec := range records {
		if observe != nil {
			observe(rec)
		}
		buckets[rec.Size] = append(buckets[rec.Size], rec)
	}

	for size, files := range buckets {
		if len(files) < 2 {
			delete(buckets, size)
		}
	}
	return buckets
}

// Flatten aplana los cubos en una lista ordenada por (tamaño, ruta).
func Flatten(buckets map[int64][]*entities.FileRecord) []*entities.FileRecord {
	var total int
	for _, files := range buckets {
		total += len(files)
	}

	flat := make([]*entities.FileRecord, 0, total)
	for _, files := range buckets {
		flat = append(flat, files...)
	}
	sortRecords(flat)
	return flat
}

// ByHash consume todos los registros ya hasheados y agrupa por (tamaño,
// hash). Descarta los grupos de un solo miembro. Los registros sin hash
// se ignoran. Dentro de cada grupo los archivos quedan ordenados por ruta.
func ByHash(records <-chan *entities.FileRecord, observe func(*entities.FileRecord)) map[entities.GroupKey]*entities.DuplicateGroup {
	groups := make(map[entities.GroupKey]*entities.DuplicateGroup)
	for rec := range records {
		if observe != nil {
			observe(rec)
		}
		if rec.Hash == "" {
			continue
		}
		key := rec.Key()
		g, ok := groups[key]
		if !ok {
			g = &entities.DuplicateGroup{Key: key, Size: key.Size, Hash: key.Hash}
			groups[key] = g
		}
		g.Files = append(g.Files, rec)
	}

	for key, g := range groups {
		if len(g.Files) < 2 {
			delete(groups, key)
			continue
		}
		sortByPath(g.Files)
	}
	return groups
}
