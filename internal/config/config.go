// Package config construye y valida la configuración de una ejecución:
// valores por defecto, archivo INI opcional y, por encima, los flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"golang.org/x/sys/unix"

	"github.com/soyunomas/duff/internal/examiner"
	"github.com/soyunomas/duff/internal/utils"
)

// Errores de configuración. Todos son fatales: se detectan antes de
// arrancar cualquier fase paralela.
var (
	ErrNoRoots      = errors.New("no search directory given")
	ErrNotDirectory = errors.New("not a directory")
	ErrUnreadable   = errors.New("not readable")
	ErrUnwritable   = errors.New("not writable")
	ErrInvalid      = errors.New("invalid configuration")
)

// Formatos de salida
const (
	FormatReport = "report"
	FormatJSON   = "json"
)

// Config es la configuración validada que consume el motor.
type Config struct {
	Roots    []string
	Jobs     int
	MinSize  int64
	MaxSize  int64
	Exts     []string
	Excludes []string

	OutDir       string
	UserSetDir   bool
	PrevHashFile string
	Log          bool
	Archive      bool
	Format       string

	Silent  bool
	Verbose bool
	Debug   bool

	// Derivados (SetOutputFiles)
	ReportFile  string
	LogFile     string
	ArchiveFile string
}

// Default devuelve la configuración base: sin filtros, un worker por CPU.
func Default() *Config {
	return &Config{
		Jobs:    runtime.NumCPU(),
		MinSize: 0,
		MaxSize: math.MaxInt64,
		Exts:    []string{examiner.Wildcard},
		Format:  FormatReport,
	}
}

// DefaultPath es $XDG_CONFIG_HOME/duff/config.ini (o ~/.config/...).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "duff", "config.ini")
}

// LoadFile aplica el archivo INI en path sobre c. Si el archivo no existe
// y mustExist es falso, no hace nada.
func (c *Config) LoadFile(path string, mustExist bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return c.apply(f)
}

func (c *Config) apply(f *ini.File) error {
	if f.HasSection("search") {
		section := f.Section("search")
		if section.HasKey("dirs") {
			c.Roots = SplitList(section.Key("dirs").String())
		}
		if section.HasKey("jobs") {
			jobs, err := section.Key("jobs").Int()
			if err != nil {
				return fmt.Errorf("%w: search.jobs: %v", ErrInvalid, err)
			}
			c.Jobs = jobs
		}
		if section.HasKey("min_size") {
			n, err := utils.ParseSize(section.Key("min_size").String())
			if err != nil {
				return fmt.Errorf("%w: search.min_size: %v", ErrInvalid, err)
			}
			c.MinSize = n
		}
		if section.HasKey("max_size") {
			n, err := utils.ParseSize(section.Key("max_size").String())
			if err != nil {
				return fmt.Errorf("%w: search.max_size: %v", ErrInvalid, err)
			}
			c.MaxSize = n
		}
		if section.HasKey("exts") {
			c.Exts = SplitList(section.Key("exts").String())
		}
		if section.HasKey("excludes") {
			c.Excludes = SplitList(section.Key("excludes").String())
		}
	}

	if f.HasSection("output") {
		section := f.Section("output")
		if section.HasKey("dir") {
			c.OutDir = section.Key("dir").String()
			c.UserSetDir = c.OutDir != ""
		}
		if section.HasKey("log") {
			c.Log = section.Key("log").MustBool(false)
		}
		if section.HasKey("archive") {
			c.Archive = section.Key("archive").MustBool(false)
		}
		if section.HasKey("format") {
			c.Format = strings.ToLower(section.Key("format").String())
		}
	}
	return nil
}

// Validate normaliza y comprueba la configuración. Cualquier error aquí
// debe abortar la ejecución.
func (c *Config) Validate() error {
	if len(c.Roots) == 0 {
		return ErrNoRoots
	}
	for _, root := range c.Roots {
		if err := ValidateRoot(root); err != nil {
			return err
		}
	}

	if c.Jobs < 1 {
		c.Jobs = 1
	}
	if c.MinSize < 0 || c.MaxSize < 0 {
		return fmt.Errorf("%w: size limits must not be negative", ErrInvalid)
	}
	if c.MinSize > c.MaxSize {
		return fmt.Errorf("%w: lower size limit %d is above upper limit %d", ErrInvalid, c.MinSize, c.MaxSize)
	}
	if len(c.Exts) == 0 {
		c.Exts = []string{examiner.Wildcard}
	}

	switch c.Format {
	case "":
		c.Format = FormatReport
	case FormatReport, FormatJSON:
	default:
		return fmt.Errorf("%w: unsupported output format %q (supported: report, json)", ErrInvalid, c.Format)
	}

	if c.OutDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("could not use the current working directory to store output, please specify one with -out: %w", err)
		}
		c.OutDir = cwd
	}
	c.OutDir = filepath.Clean(c.OutDir)
	if err := ValidateOutDir(c.OutDir, c.UserSetDir); err != nil {
		return err
	}

	if c.PrevHashFile != "" {
		if err := unix.Access(c.PrevHashFile, unix.R_OK); err != nil {
			return fmt.Errorf("%w: previous hash file %s: %v. Fix it or re-run without -hash", ErrUnreadable, c.PrevHashFile, err)
		}
	}
	return nil
}

// ValidateRoot comprueba que root exista, sea un directorio y se pueda
// listar.
func ValidateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("there was an error with the specified directory, %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("specified directory %s: %w", root, ErrNotDirectory)
	}
	if err := unix.Access(root, unix.R_OK|unix.X_OK); err != nil {
		return fmt.Errorf("specified directory %s is %w: %v", root, ErrUnreadable, err)
	}
	return nil
}

// ValidateOutDir comprueba que dir exista y se pueda escribir. El mensaje
// cambia según si el directorio lo eligió el usuario o es el actual.
func ValidateOutDir(dir string, userSet bool) error {
	info, err := os.Stat(dir)
	if err == nil && !info.IsDir() {
		err = ErrNotDirectory
	}
	if err == nil {
		err = unix.Access(dir, unix.W_OK|unix.X_OK)
	}
	if err == nil {
		return nil
	}

	if userSet {
		return fmt.Errorf("%w: could not write to output directory %s (%v). Please specify a directory with write permissions using -out", ErrUnwritable, dir, err)
	}
	return fmt.Errorf("%w: no output directory given and the current directory %s is not writable (%v). Please specify one using -out", ErrUnwritable, dir, err)
}

// SetOutputFiles deriva las rutas del reporte, log y archivo de hashes.
func (c *Config) SetOutputFiles(now time.Time) {
	stamp := now.Format("2006_01_02__15_04_05")
	c.ReportFile = filepath.Join(c.OutDir, "DuFF_"+stamp+".report")
	if c.Log {
		c.LogFile = filepath.Join(c.OutDir, "DuFF_"+stamp+".log")
	}
	if c.Archive {
		c.ArchiveFile = filepath.Join(c.OutDir, "DuFF_"+stamp+".arch")
	}
}

// Filter traduce los límites al filtro del examinador.
func (c *Config) Filter() examiner.Filter {
	return examiner.Filter{Exts: c.Exts, MinSize: c.MinSize, MaxSize: c.MaxSize}
}

// SplitList separa una lista por comas descartando vacíos.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String es el resumen que se muestra al arrancar.
func (c *Config) String() string {
	var b strings.Builder
	border := strings.Repeat("=", 72)
	row := func(k string, v any) { fmt.Fprintf(&b, "%-32s %v\n", k, v) }

	fmt.Fprintf(&b, "%s\n%-32s %s\n%s\n", border, time.Now().Format("2006-01-02 15:04:05"), "Resumen", border)
	row("Directorios:", strings.Join(c.Roots, ","))
	row("Extensiones:", strings.Join(c.Exts, ", "))
	if c.MinSize > 0 {
		row("Tamaño mínimo:", utils.ByteCountDecimal(c.MinSize))
	}
	if c.MaxSize < math.MaxInt64 {
		row("Tamaño máximo:", utils.ByteCountDecimal(c.MaxSize))
	}
	row("Workers:", c.Jobs)
	row("Directorio de salida:", c.OutDir)
	row("Reporte:", c.ReportFile)
	if c.PrevHashFile != "" {
		row("Caché de hashes:", c.PrevHashFile)
	}
	if c.Archive {
		row("Guardar hashes:", c.ArchiveFile)
	} else {
		row("Guardar hashes:", false)
	}
	if c.Log {
		row("Guardar log:", c.LogFile)
	} else {
		row("Guardar log:", false)
	}
	b.WriteString(border)
	return b.String()
}
