package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Backup legt eine zeitgestempelte Kopie der Arbeitsmappe im
// Backup-Verzeichnis ab und entfernt die ältesten Kopien über das
// Limit hinaus. Gibt den Pfad der neuen Kopie zurück.
func (s *Store) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyToBackupDir("backup")
}

// quarantine sichert eine unlesbare Arbeitsmappe, bevor sie ersetzt wird.
// Läuft unter bereits gehaltenem Mutex.
func (s *Store) quarantine() error {
	_, err := s.copyToBackupDir("corrupt")
	return err
}

func (s *Store) copyToBackupDir(prefix string) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("arbeitsmappe nicht lesbar für backup: %w", err)
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%s", prefix, time.Now().Format("20060102_150405"), filepath.Base(s.path))
	dst := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}

	s.cleanupBackups(prefix)
	s.logger.Info("Backup der Arbeitsmappe erstellt", zap.String("path", dst))
	return dst, nil
}

// cleanupBackups behält die neuesten keep Kopien je Präfix.
func (s *Store) cleanupBackups(prefix string) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return
	}

	type backup struct {
		path string
		mod  time.Time
	}
	var backups []backup
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix+"_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{filepath.Join(s.backupDir, e.Name()), info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].mod.After(backups[j].mod) })
	for _, b := range backups[min(len(backups), s.keep):] {
		if err := os.Remove(b.path); err != nil {
			s.logger.Warn("Altes Backup konnte nicht entfernt werden", zap.String("path", b.path), zap.Error(err))
		}
	}
}
