package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage implements Storage using the local filesystem. Each run gets
// its own directory named after the run ID.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// BasePath returns the storage root.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Save writes r to <base>/<runID>/<name>.
func (s *LocalStorage) Save(ctx context.Context, runID uuid.UUID, name, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runDir := s.runDir(runID)
	if err := os.MkdirAll(filepath.Join(runDir, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	safeName := sanitizeFilename(name)
	filePath := filepath.Join(runDir, safeName)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		RunID:       runID,
		Name:        safeName,
		Size:        size,
		ContentType: contentType,
		Path:        filePath,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.saveMetadata(runID, info); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns the stored file and its metadata.
func (s *LocalStorage) Open(ctx context.Context, runID uuid.UUID, name string) (io.ReadCloser, *FileInfo, error) {
	info, err := s.getInfo(runID, sanitizeFilename(name))
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(info.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("report %s/%s: %w", runID, name, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// List returns the files of a run sorted by name.
func (s *LocalStorage) List(ctx context.Context, runID uuid.UUID) ([]*FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.runDir(runID), metaDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := s.getInfo(runID, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Runs lists run directories with their modification time.
func (s *LocalStorage) Runs(ctx context.Context) (map[uuid.UUID]time.Time, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make(map[uuid.UUID]time.Time, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		runs[id] = fi.ModTime()
	}
	return runs, nil
}

// Delete removes a run directory.
func (s *LocalStorage) Delete(ctx context.Context, runID uuid.UUID) error {
	dir := s.runDir(runID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func (s *LocalStorage) runDir(runID uuid.UUID) string {
	return filepath.Join(s.basePath, runID.String())
}

func (s *LocalStorage) getInfo(runID uuid.UUID, name string) (*FileInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), metaDir, name+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("report %s/%s: %w", runID, name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

// saveMetadata saves file metadata to a JSON file
func (s *LocalStorage) saveMetadata(runID uuid.UUID, info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	metaPath := filepath.Join(s.runDir(runID), metaDir, info.Name+".json")
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
