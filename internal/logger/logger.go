package logger

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"CollectRecon/internal/config"
)

const auditDayLayout = "20060102"

// LoggerService redirects the standard logger to size-rotated operational
// files and keeps the audit trail of ledger and arrangement activity in
// separate day files. Operational files are archived by age or count; audit
// day files are only archived once they pass audit_retention_days and are
// never removed unarchived.
type LoggerService struct {
	Config map[string]interface{}

	mu         sync.Mutex
	file       *os.File
	currentLog string
	audit      *os.File
	auditDay   string

	stopCh chan struct{}
	wg     sync.WaitGroup

	folderPath    string
	filePrefix    string
	maxFileBytes  int64
	retentionDays int
	maxFiles      int
	auditDays     int
}

func NewLoggerService(cfg map[string]interface{}) *LoggerService {
	return &LoggerService{
		Config:        cfg,
		stopCh:        make(chan struct{}),
		folderPath:    config.String(cfg, "folder_path", "./logs"),
		filePrefix:    config.String(cfg, "file_prefix", "collections"),
		maxFileBytes:  int64(config.Int(cfg, "max_file_mb", 0)) * 1024 * 1024,
		retentionDays: config.Int(cfg, "retention_days", 0),
		maxFiles:      config.Int(cfg, "max_files", 0),
		auditDays:     config.Int(cfg, "audit_retention_days", 0),
	}
}

func (l *LoggerService) Name() string {
	return "logger"
}

func (l *LoggerService) Start() error {
	if err := os.MkdirAll(l.folderPath, 0755); err != nil {
		return err
	}
	l.mu.Lock()
	err := l.openLog()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	log.Println("[LoggerService] Started, writing to", l.CurrentFile())
	l.archiveExpired(time.Now())

	l.wg.Add(1)
	go l.backgroundWorker()
	return nil
}

func (l *LoggerService) Stop() error {
	close(l.stopCh)
	l.wg.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.audit != nil {
		l.audit.Close()
		l.audit = nil
	}
	if l.file != nil {
		log.Println("[LoggerService] Stopping")
		log.SetOutput(os.Stderr)
		return l.file.Close()
	}
	return nil
}

// CurrentFile is the path currently receiving log output.
func (l *LoggerService) CurrentFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLog
}

// AuditFile is the audit day file for t.
func (l *LoggerService) AuditFile(t time.Time) string {
	return filepath.Join(l.folderPath, fmt.Sprintf("%s_audit_%s.log", l.filePrefix, t.UTC().Format(auditDayLayout)))
}

// openLog starts a new operational file; callers hold mu.
func (l *LoggerService) openLog() error {
	name := filepath.Join(l.folderPath, fmt.Sprintf("%s_%s.log", l.filePrefix, time.Now().Format("20060102_150405.000")))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if l.file != nil {
		l.file.Close()
	}
	l.file = file
	l.currentLog = name
	log.SetOutput(file)
	return nil
}

func (l *LoggerService) rotateIfNeeded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil || l.maxFileBytes <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < l.maxFileBytes {
		return nil
	}
	if err := l.openLog(); err != nil {
		return err
	}
	log.Println("[LoggerService] Rotated log file to", l.currentLog)
	return nil
}

func (l *LoggerService) backgroundWorker() {
	defer l.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	retentionTicker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	defer retentionTicker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.rotateIfNeeded(); err != nil {
				log.Println("[LoggerService] rotation failed:", err)
			}
		case now := <-retentionTicker.C:
			l.archiveExpired(now)
		}
	}
}

// expired picks the rotated operational files past retention_days or beyond
// the newest max_files, and the audit day files older than
// audit_retention_days. Open files are never picked.
func (l *LoggerService) expired(now time.Time) (logs, audits []string) {
	entries, err := os.ReadDir(l.folderPath)
	if err != nil {
		return nil, nil
	}
	current := l.CurrentFile()
	openAudit := l.AuditFile(now)
	auditPrefix := l.filePrefix + "_audit_"

	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".log" || !strings.HasPrefix(name, l.filePrefix+"_") {
			continue
		}
		full := filepath.Join(l.folderPath, name)
		if strings.HasPrefix(name, auditPrefix) {
			if l.auditDays <= 0 || full == openAudit {
				continue
			}
			day, err := time.Parse(auditDayLayout, strings.TrimSuffix(strings.TrimPrefix(name, auditPrefix), ".log"))
			if err == nil && day.Before(now.UTC().AddDate(0, 0, -l.auditDays)) {
				audits = append(audits, full)
			}
			continue
		}
		if full != current {
			rotated = append(rotated, full)
		}
	}

	// names carry their start time, so lexical order is age order
	sort.Strings(rotated)
	cutoff := now.AddDate(0, 0, -l.retentionDays)
	for i, full := range rotated {
		overCount := l.maxFiles > 0 && i < len(rotated)-l.maxFiles
		tooOld := false
		if l.retentionDays > 0 {
			if info, err := os.Stat(full); err == nil && info.ModTime().Before(cutoff) {
				tooOld = true
			}
		}
		if overCount || tooOld {
			logs = append(logs, full)
		}
	}
	return logs, audits
}

// archiveExpired zips expired files and removes them only once the archive
// is written. It returns the archives created.
func (l *LoggerService) archiveExpired(now time.Time) []string {
	logs, audits := l.expired(now)
	stamp := now.Format("20060102_150405")
	var archives []string
	for _, set := range []struct {
		kind  string
		files []string
	}{{"archive", logs}, {"audit_archive", audits}} {
		if len(set.files) == 0 {
			continue
		}
		name := filepath.Join(l.folderPath, fmt.Sprintf("%s_%s_%s.zip", l.filePrefix, set.kind, stamp))
		if err := writeArchive(name, set.files); err != nil {
			log.Printf("[LoggerService] archiving %d files to %s failed: %v", len(set.files), name, err)
			continue
		}
		for _, f := range set.files {
			os.Remove(f)
		}
		archives = append(archives, name)
	}
	return archives
}

func writeArchive(name string, files []string) error {
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := addToArchive(zw, f); err != nil {
			zw.Close()
			out.Close()
			os.Remove(name)
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(name)
		return err
	}
	return out.Close()
}

func addToArchive(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// LogAudit records msg in today's audit file and echoes it to the
// operational log.
func (l *LoggerService) LogAudit(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	log.Printf("[AUDIT] %s", msg)
	if l.file == nil {
		return
	}
	now := time.Now().UTC()
	day := now.Format(auditDayLayout)
	if l.audit == nil || l.auditDay != day {
		if l.audit != nil {
			l.audit.Close()
		}
		f, err := os.OpenFile(l.AuditFile(now), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			l.audit = nil
			log.Printf("[LoggerService] audit file unavailable: %v", err)
			return
		}
		l.audit = f
		l.auditDay = day
	}
	fmt.Fprintf(l.audit, "%s %s\n", now.Format(time.RFC3339Nano), msg)
}

var GlobalLogger *LoggerService

func SetGlobalLogger(l *LoggerService) {
	GlobalLogger = l
}

// Audit writes through GlobalLogger when the logger service is running and
// falls back to the standard logger otherwise (CLI, tests).
func Audit(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if GlobalLogger != nil {
		GlobalLogger.LogAudit(msg)
		return
	}
	log.Printf("[AUDIT] %s", msg)
}
