// Package report convierte los grupos de duplicados en el reporte de
// texto (.report) o en JSON.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/soyunomas/duff/internal/engine"
	"github.com/soyunomas/duff/internal/entities"
	"github.com/soyunomas/duff/internal/grouper"
	"github.com/soyunomas/duff/internal/utils"
)

// Header es la primera línea del reporte de texto.
const Header = "File Count\tDuplicate Number\tSize\tHash\tPath"

// --- ESTRUCTURAS PARA EL REPORTE FINAL ---

type Report struct {
	Summary  Summary       `json:"summary"`
	Groups   []GroupResult `json:"groups"`
	Metadata Metadata      `json:"metadata"`
}

type Metadata struct {
	RunID        string    `json:"run_id"`
	ScannedPaths []string  `json:"scanned_paths"`
	Timestamp    time.Time `json:"timestamp"`
	Duration     string    `json:"duration_human"`
}

type Summary struct {
	TotalFilesScanned     int64  `json:"total_files_scanned"`
	TotalCandidates       int64  `json:"total_candidates"`
	TotalGroups           int64  `json:"total_groups"`
	TotalDuplicates       int64  `json:"total_duplicates"`
	TotalHardLinks        int64  `json:"total_hard_links"`
	CacheHits             int64  `json:"cache_hits"`
	Vanished              int64  `json:"vanished"`
	BytesRecoverable      int64  `json:"bytes_recoverable"`
	BytesRecoverableHuman string `json:"bytes_recoverable_human"`
}

type GroupResult struct {
	Hash      string   `json:"hash"`
	Size      int64    `json:"file_size"`
	Files     []Member `json:"files"`
	HardLinks []string `json:"hardlinks,omitempty"`
}

type Member struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

type sysID struct {
	dev, inode uint64
}

// Build arma el reporte JSON. Los miembros que comparten inodo con uno
// anterior del mismo grupo se cuentan como hard links y no suman bytes
// recuperables.
func Build(res *engine.Result, runID string, roots []string) Report {
	rep := Report{
		Metadata: Metadata{
			RunID:        runID,
			ScannedPaths: roots,
			Timestamp:    time.Now(),
			Duration:     res.Stats.Duration.String(),
		},
		Summary: Summary{
			TotalFilesScanned: res.Stats.Discovered,
			TotalCandidates:   res.Stats.SizeCandidates,
			CacheHits:         res.Stats.CacheHits,
			Vanished:          res.Stats.Vanished,
		},
		Groups: []GroupResult{},
	}

	for _, group := range grouper.SortedGroups(res.Groups, grouper.LargestFirst) {
		gRes := GroupResult{Hash: group.Hash, Size: group.Size}

		seenInodes := make(map[sysID]bool)
		for i, file := range group.Files {
			gRes.Files = append(gRes.Files, Member{Path: file.Path, ModTime: file.ModTime})

			id := sysID{file.DeviceID, file.Inode}
			if file.Inode != 0 && seenInodes[id] {
				gRes.HardLinks = append(gRes.HardLinks, file.Path)
				rep.Summary.TotalHardLinks++
				continue
			}
			seenInodes[id] = true
			if i > 0 {
				rep.Summary.TotalDuplicates++
				rep.Summary.BytesRecoverable += file.Size
			}
		}

		rep.Groups = append(rep.Groups, gRes)
	}

	rep.Summary.TotalGroups = int64(len(rep.Groups))
	rep.Summary.BytesRecoverableHuman = utils.ByteCountDecimal(rep.Summary.BytesRecoverable)
	return rep
}

// WriteJSON escribe el reporte indentado.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText escribe el reporte tabulado: una fila por archivo con el
// número de grupo y su posición dentro del grupo, ambos desde 1.
func WriteText(w io.Writer, groups map[entities.GroupKey]*entities.DuplicateGroup) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, Header)

	for gi, g := range grouper.SortedGroups(groups, grouper.LargestFirst) {
		for mi, f := range g.Files {
			fmt.Fprintf(bw, "%d\t%d\t%d\t%s\t%s\n", gi+1, mi+1, f.Size, f.Hash, f.Path)
		}
	}
	return bw.Flush()
}
