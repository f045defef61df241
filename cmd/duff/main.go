package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/soyunomas/duff/internal/cache"
	"github.com/soyunomas/duff/internal/config"
	"github.com/soyunomas/duff/internal/engine"
	"github.com/soyunomas/duff/internal/logging"
	"github.com/soyunomas/duff/internal/report"
	"github.com/soyunomas/duff/internal/utils"
)

func main() {
	// Flags
	configPtr := flag.String("config", "", "Archivo INI de configuración (por defecto "+config.DefaultPath()+")")
	dirPtr := flag.String("dir", "", "Directorios a escanear, separados por comas")
	jobsPtr := flag.Int("jobs", 0, "Workers por fase (por defecto uno por CPU)")
	minSizePtr := flag.String("min-size", "", "Tamaño mínimo (ej: 10K, 1.5MB)")
	maxSizePtr := flag.String("max-size", "", "Tamaño máximo (ej: 2G)")
	extsPtr := flag.String("exts", "", "Extensiones a incluir, separadas por comas (* = todas)")
	excludePtr := flag.String("exclude", "", "Nombres de carpeta a ignorar, separados por comas")
	outPtr := flag.String("out", "", "Directorio donde guardar reporte, log y hashes")
	hashPtr := flag.String("hash", "", "Archivo de hashes de una ejecución anterior (.arch)")
	archivePtr := flag.Bool("archive", false, "Guardar los hashes calculados para reutilizarlos")
	logPtr := flag.Bool("log", false, "Guardar un log con cada archivo examinado y hasheado")
	jsonPtr := flag.Bool("json", false, "Salida en formato JSON a stdout")
	silentPtr := flag.Bool("silent", false, "Solo mostrar errores")
	verbosePtr := flag.Bool("v", false, "Mostrar el progreso de cada fase")
	debugPtr := flag.Bool("debug", false, "Mostrar mensajes de depuración")

	flag.Parse()

	// 1. Construir la configuración: defaults, INI y flags, en ese orden
	cfg := config.Default()
	if *configPtr != "" {
		if err := cfg.LoadFile(*configPtr, true); err != nil {
			die(err, *jsonPtr)
		}
	} else if err := cfg.LoadFile(config.DefaultPath(), false); err != nil {
		die(err, *jsonPtr)
	}

	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "dir":
			cfg.Roots = config.SplitList(*dirPtr)
		case "jobs":
			cfg.Jobs = *jobsPtr
		case "min-size":
			cfg.MinSize, err = utils.ParseSize(*minSizePtr)
		case "max-size":
			cfg.MaxSize, err = utils.ParseSize(*maxSizePtr)
		case "exts":
			cfg.Exts = config.SplitList(*extsPtr)
		case "exclude":
			cfg.Excludes = config.SplitList(*excludePtr)
		case "out":
			cfg.OutDir = *outPtr
			cfg.UserSetDir = true
		case "hash":
			cfg.PrevHashFile = *hashPtr
		case "archive":
			cfg.Archive = *archivePtr
		case "log":
			cfg.Log = *logPtr
		case "json":
			if *jsonPtr {
				cfg.Format = config.FormatJSON
			}
		case "silent":
			cfg.Silent = *silentPtr
		case "v":
			cfg.Verbose = *verbosePtr
		case "debug":
			cfg.Debug = *debugPtr
		}
		if err != nil && flagErr == nil {
			flagErr = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	jsonMode := cfg.Format == config.FormatJSON
	if flagErr != nil {
		die(flagErr, jsonMode)
	}

	if err := cfg.Validate(); err != nil {
		die(err, jsonMode)
	}
	cfg.SetOutputFiles(time.Now())

	runID := uuid.New().String()
	log := logging.New(logging.Level(cfg.Verbose, cfg.Debug, cfg.Silent), nil).WithField("run", runID)

	if !cfg.Silent && !jsonMode {
		fmt.Println("🚀 DuFF - Buscador de archivos duplicados")
		fmt.Println(cfg)
	}

	// 2. Caché y archivo de hashes
	var prev *cache.Cache
	if cfg.PrevHashFile != "" {
		prev = loadCache(cfg.PrevHashFile, log)
	}

	var archive *cache.Archive
	if cfg.ArchiveFile != "" {
		f, err := os.OpenFile(cfg.ArchiveFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.WithError(err).WithField("path", cfg.ArchiveFile).Warn("No se pudo crear el archivo de hashes, se continúa sin él")
		} else {
			defer f.Close()
			archive = cache.NewArchive(f, log)
		}
	}

	// 3. Log de registros
	opts := engine.Options{
		Roots:    cfg.Roots,
		Filter:   cfg.Filter(),
		Jobs:     cfg.Jobs,
		Excludes: cfg.Excludes,
		Cache:    prev,
		Archive:  archive,
		Logger:   log,
	}

	var recLog *report.RecordLog
	if cfg.LogFile != "" {
		f, err := os.Create(cfg.LogFile)
		if err != nil {
			log.WithError(err).WithField("path", cfg.LogFile).Warn("No se pudo crear el log, se continúa sin él")
		} else {
			defer f.Close()
			recLog = report.NewRecordLog(f, log)
			recLog.Section("Config", cfg.String())
			recLog.Section("Starting file search")
			opts.OnExamined = recLog.Record
			opts.OnHashStart = func(int) { recLog.Section("Starting hashing") }
			opts.OnHashed = recLog.Record
		}
	}

	// 4. Ejecutar Engine
	res, err := engine.New(afero.NewOsFs(), opts).Run()
	if err != nil {
		die(err, jsonMode)
	}
	if recLog != nil {
		_ = recLog.Close()
	}
	if archive != nil && archive.Failed() > 0 {
		log.WithField("failed", archive.Failed()).Warn("Algunos hashes no se guardaron")
	}

	// 5. Salida
	if jsonMode {
		if err := report.WriteJSON(os.Stdout, report.Build(res, runID, cfg.Roots)); err != nil {
			log.WithError(err).Error("No se pudo escribir el reporte JSON")
		}
		return
	}

	if err := writeReport(cfg.ReportFile, res); err != nil {
		die(err, false)
	}
	if !cfg.Silent {
		printSummary(cfg, res)
	}
}

// loadCache abre el archivo de hashes previo. Un fallo aquí no es fatal:
// se sigue sin caché.
func loadCache(path string, log *logrus.Entry) *cache.Cache {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("No se pudo abrir la caché de hashes")
		return nil
	}
	defer f.Close()

	c, err := cache.Load(f, log)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Caché de hashes ilegible, se continúa sin ella")
	}
	return c
}

func writeReport(path string, res *engine.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create report %s: %w", path, err)
	}
	defer f.Close()

	if err := report.WriteText(f, res.Groups); err != nil {
		return fmt.Errorf("could not write report %s: %w", path, err)
	}
	return f.Close()
}

func printSummary(cfg *config.Config, res *engine.Result) {
	s := res.Stats
	fmt.Println("------------------------------------------------")
	if s.Groups == 0 {
		fmt.Println("✅ ¡Limpio! No se encontraron duplicados.")
	} else {
		var wasted int64
		for _, g := range res.Groups {
			wasted += g.Size * int64(len(g.Files)-1)
		}
		fmt.Printf("🔴 Grupos de duplicados: %d (%d archivos repetidos)\n", s.Groups, s.DuplicateFiles)
		fmt.Printf("💾 Espacio ocupado por copias: %s\n", utils.ByteCountDecimal(wasted))
	}
	fmt.Printf("📂 Directorios: %d | Archivos: %d | Candidatos: %d\n", s.Directories, s.Discovered, s.SizeCandidates)
	fmt.Printf("⚡ Caché: %d | Hasheados: %d | Desaparecidos: %d | Errores: %d\n",
		s.CacheHits, s.Hashed, s.Vanished, s.HashErrors+s.TraversalErrors+s.ExamineErrors)
	fmt.Printf("⏱️  Duración: %s\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("📄 Reporte: %s\n", cfg.ReportFile)
	if cfg.ArchiveFile != "" {
		fmt.Printf("🗂️  Hashes: %s\n", cfg.ArchiveFile)
	}
	if cfg.LogFile != "" {
		fmt.Printf("📝 Log: %s\n", cfg.LogFile)
	}
}

func die(err error, jsonMode bool) {
	if jsonMode {
		fmt.Printf(`{"error": %q}`+"\n", err.Error())
	} else {
		fmt.Fprintf(os.Stderr, "❌ Error fatal: %v\n", err)
	}
	os.Exit(1)
}
