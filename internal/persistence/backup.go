// Package persistence provides tar.gz backup and restore of a tenant's (or
// the whole store's) memories, adapted from the teacher's
// internal/persistence.BackupManager — same tar+gzip archive shape and
// sidecar .meta.json file, rewritten against vectorstore.Store and
// memmodel.Memory instead of the teacher's ConversationChunk/VectorStorage.
package persistence

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentmemory/internal/memmodel"
	"agentmemory/internal/vectorstore"
)

// BackupMetadata describes one backup archive.
type BackupMetadata struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	TenantID    string    `json:"tenant_id,omitempty"`
	MemoryCount int       `json:"memory_count"`
	Size        int64     `json:"size"`
	ArchivePath string    `json:"archive_path"`
}

// Manager creates and restores backups against a vectorstore.Store.
type Manager struct {
	store vectorstore.Store
	dir   string
}

// NewManager builds a Manager writing archives under dir.
func NewManager(store vectorstore.Store, dir string) *Manager {
	return &Manager{store: store, dir: dir}
}

// CreateBackup archives every memory in tenantID's scope (or the whole
// store, if tenantID is empty) as a gzip-compressed tar file, one JSON
// file per memory, plus a sidecar metadata file.
func (m *Manager) CreateBackup(ctx context.Context, tenantID string) (*BackupMetadata, error) {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	memories, err := m.store.ListAll(ctx, vectorstore.Filter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	label := tenantID
	if label == "" {
		label = "all-tenants"
	}
	archivePath := filepath.Join(m.dir, fmt.Sprintf("backup_%s_%s.tar.gz", label, time.Now().Format("20060102_150405")))

	if err := writeArchive(archivePath, memories); err != nil {
		return nil, err
	}

	stat, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	meta := &BackupMetadata{
		Version:     "1.0",
		CreatedAt:   time.Now(),
		TenantID:    tenantID,
		MemoryCount: len(memories),
		Size:        stat.Size(),
		ArchivePath: archivePath,
	}
	if err := writeMetadata(archivePath, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func writeArchive(path string, memories []memmodel.Memory) error {
	file, err := os.Create(path) // #nosec G304 -- path is built from a fixed directory and timestamp
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	for i := range memories {
		data, err := json.Marshal(memories[i])
		if err != nil {
			return fmt.Errorf("marshal memory %s: %w", memories[i].ID, err)
		}
		header := &tar.Header{
			Name: fmt.Sprintf("memories/%s.json", memories[i].ID),
			Size: int64(len(data)),
			Mode: 0o644,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("write memory data: %w", err)
		}
	}
	return nil
}

func writeMetadata(archivePath string, meta *BackupMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(archivePath+".meta.json", data, 0o600)
}

// RestoreBackup reads archivePath and upserts every memory it contains back
// into the store. Restoring is idempotent: each memory is keyed by its
// original ID, so re-running a restore only overwrites, never duplicates.
func (m *Manager) RestoreBackup(ctx context.Context, archivePath string) (int, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	restored := 0
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return restored, fmt.Errorf("read tar header: %w", err)
		}
		if !strings.HasPrefix(header.Name, "memories/") {
			continue
		}

		data := make([]byte, header.Size)
		if _, err := io.ReadFull(tr, data); err != nil {
			return restored, fmt.Errorf("read memory data: %w", err)
		}

		var mem memmodel.Memory
		if err := json.Unmarshal(data, &mem); err != nil {
			return restored, fmt.Errorf("unmarshal memory: %w", err)
		}
		if mem.ID == uuid.Nil {
			return restored, fmt.Errorf("memory in archive has no id")
		}
		if err := m.store.Upsert(ctx, &mem); err != nil {
			return restored, fmt.Errorf("restore memory %s: %w", mem.ID, err)
		}
		restored++
	}
	return restored, nil
}

// ListBackups returns the metadata for every backup under dir, newest
// first.
func (m *Manager) ListBackups() ([]BackupMetadata, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var backups []BackupMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name())) // #nosec G304 -- dir is operator-configured, names come from ReadDir
		if err != nil {
			continue
		}
		var meta BackupMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		backups = append(backups, meta)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt.After(backups[j].CreatedAt) })
	return backups, nil
}
