package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"calendarcam/internal/config"
	"calendarcam/internal/dto"
	"calendarcam/internal/logger"
	"calendarcam/internal/model"

	"github.com/bytedance/sonic"
)

const stillTimestampLayout = "2006-01-02_15-04-05.000"

// ErrDayNotFound is returned when no crop exists for the requested day.
var ErrDayNotFound = errors.New("day crop not found")

// ArtifactStore writes everything a run leaves on disk: day crops, raw
// stills and the record file.
type ArtifactStore struct {
	daysDir     string
	stillsDir   string
	recordsPath string
	mu          sync.Mutex
	logger      *logger.Logger
}

func NewArtifactStore(config *config.Config, logger *logger.Logger) *ArtifactStore {
	return &ArtifactStore{
		daysDir:     config.DaysDirectory(),
		stillsDir:   config.StillsDirectory(),
		recordsPath: config.RecordsPath(),
		logger:      logger,
	}
}

// ResetDays empties the day-crop directory (files only) so crops of an
// earlier run never mix with the current one.
func (s *ArtifactStore) ResetDays() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.daysDir, 0755); err != nil {
		return fmt.Errorf("failed to create days directory: %w", err)
	}
	files, err := os.ReadDir(s.daysDir)
	if err != nil {
		return fmt.Errorf("failed to read days directory: %w", err)
	}

	removed := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.daysDir, file.Name())); err != nil {
			s.logger.Error("Error deleting file %s: %v", file.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("Cleared %d old day crops from %s", removed, s.daysDir)
	}
	return nil
}

// DayFilename is the crop name for day, zero-padded to two digits.
func DayFilename(day int) string {
	return fmt.Sprintf("day_%02d.jpg", day)
}

// SaveCell writes the crop of one day and returns its path.
func (s *ArtifactStore) SaveCell(day int, data []byte) (string, error) {
	if err := os.MkdirAll(s.daysDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create days directory: %w", err)
	}
	path := filepath.Join(s.daysDir, DayFilename(day))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save day %d: %w", day, err)
	}
	return path, nil
}

// SaveStill keeps a captured still. suffix distinguishes derived images
// (e.g. "cells" for the annotated overlay) and may be empty.
func (s *ArtifactStore) SaveStill(data []byte, capturedAt time.Time, suffix string) (string, error) {
	if err := os.MkdirAll(s.stillsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create stills directory: %w", err)
	}
	name := "calendar_" + capturedAt.Format(stillTimestampLayout)
	if suffix != "" {
		name += "_" + suffix
	}
	path := filepath.Join(s.stillsDir, name+".jpg")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save still %s: %w", name, err)
	}
	s.logger.Info("Saved still %s (%d bytes)", path, len(data))
	return path, nil
}

// DayEntries converts day records to the record-file schema.
func DayEntries(days []model.DayRecord) []dto.DayEntry {
	entries := make([]dto.DayEntry, 0, len(days))
	for _, d := range days {
		entries = append(entries, dto.DayEntry{Day: d.Day, Events: d.Text})
	}
	return entries
}

// WriteCalendar replaces the record file with the days of cal.
func (s *ArtifactStore) WriteCalendar(cal *model.Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := sonic.ConfigStd.MarshalIndent(dto.CalendarFile{Days: DayEntries(cal.Days)}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.recordsPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := s.recordsPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	if err := os.Rename(tmp, s.recordsPath); err != nil {
		return fmt.Errorf("failed to replace calendar: %w", err)
	}

	s.logger.Info("Wrote %d days to %s", len(cal.Days), s.recordsPath)
	return nil
}

// ReadCalendar loads the last written record file.
func (s *ArtifactStore) ReadCalendar() (*dto.CalendarFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.recordsPath)
	if err != nil {
		return nil, err
	}
	var file dto.CalendarFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.recordsPath, err)
	}
	return &file, nil
}

// DayPath returns the crop path for day if it exists.
func (s *ArtifactStore) DayPath(day int) (string, error) {
	if day < 1 {
		return "", fmt.Errorf("%w: day %d", ErrDayNotFound, day)
	}
	path := filepath.Join(s.daysDir, DayFilename(day))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: day %d", ErrDayNotFound, day)
	}
	return path, nil
}

// StillPath resolves name inside the stills directory, rejecting anything
// that would escape it.
func (s *ArtifactStore) StillPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid still name %q", name)
	}
	return filepath.Join(s.stillsDir, name), nil
}

// ListStills returns the kept stills, newest first.
func (s *ArtifactStore) ListStills() (dto.StillsData, error) {
	data := dto.StillsData{StillsDir: s.stillsDir, Stills: []dto.StillInfo{}}

	files, err := os.ReadDir(s.stillsDir)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("failed to read stills directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			s.logger.Error("Error reading still %s: %v", file.Name(), err)
			continue
		}
		data.Stills = append(data.Stills, dto.StillInfo{
			Name:       file.Name(),
			CapturedAt: stillTime(file.Name(), info.ModTime()),
			Size:       info.Size(),
		})
		data.Size += info.Size()
	}
	sort.Slice(data.Stills, func(i, j int) bool {
		return data.Stills[i].CapturedAt.After(data.Stills[j].CapturedAt)
	})
	data.Length = len(data.Stills)
	return data, nil
}

// stillTime parses the timestamp embedded in a still name, falling back to
// the file modification time.
func stillTime(name string, fallback time.Time) time.Time {
	stem := strings.TrimPrefix(strings.TrimSuffix(name, filepath.Ext(name)), "calendar_")
	if len(stem) >= len(stillTimestampLayout) {
		if t, err := time.ParseInLocation(stillTimestampLayout, stem[:len(stillTimestampLayout)], time.Local); err == nil {
			return t
		}
	}
	return fallback
}
