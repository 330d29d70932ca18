// Package localfs stores source document blobs on the local filesystem.
// Every Put writes an immutable versioned file next to a latest pointer, so
// a re-upload never clobbers earlier bytes, and the retention tier lives in
// a sidecar the way an object-store lifecycle rule would track it.
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/core/ports"
)

const (
	latestSuffix = ".latest"
	tierSuffix   = ".tier"
	metaSuffix   = ".meta"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/blobs"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Put writes data as a new version of key and points the latest marker at
// it. The returned version token never changes once written.
func (s *Storage) Put(_ context.Context, key string, data io.Reader, metadata map[string]string) (string, error) {
	if err := validName(key); err != nil {
		return "", err
	}
	version := uuid.NewString()
	path := s.blobPath(key, version)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close blob: %w", err)
	}

	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("encode blob metadata: %w", err)
		}
		if err := os.WriteFile(path+metaSuffix, encoded, 0o644); err != nil {
			return "", fmt.Errorf("write blob metadata: %w", err)
		}
	}
	if err := os.WriteFile(s.keyPath(key)+latestSuffix, []byte(version), 0o644); err != nil {
		return "", fmt.Errorf("update latest pointer: %w", err)
	}
	return version, nil
}

// Get opens one version of key; an empty version resolves the latest pointer.
func (s *Storage) Get(_ context.Context, key, version string) (io.ReadCloser, error) {
	if err := validName(key); err != nil {
		return nil, err
	}
	if version == "" {
		raw, err := os.ReadFile(s.keyPath(key) + latestSuffix)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, domain.WrapError(domain.ErrDocumentNotFound, "get blob",
					fmt.Errorf("no versions stored for %q", key))
			}
			return nil, fmt.Errorf("read latest pointer: %w", err)
		}
		version = strings.TrimSpace(string(raw))
	} else if err := validName(version); err != nil {
		return nil, err
	}

	f, err := os.Open(s.blobPath(key, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get blob",
				fmt.Errorf("%s version %s", key, version))
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// TransitionTier records the retention tier for key. Local files never move;
// the sidecar is what a real object-store migration would act on.
func (s *Storage) TransitionTier(_ context.Context, key string, tier ports.StorageTier) error {
	if err := validName(key); err != nil {
		return err
	}
	switch tier {
	case ports.TierHot, ports.TierWarm, ports.TierCold:
	default:
		return domain.WrapError(domain.ErrInvalidInput, "transition blob tier",
			fmt.Errorf("unknown tier %q", tier))
	}
	if _, err := os.Stat(s.keyPath(key) + latestSuffix); err != nil {
		if os.IsNotExist(err) {
			return domain.WrapError(domain.ErrDocumentNotFound, "transition blob tier",
				fmt.Errorf("no versions stored for %q", key))
		}
		return fmt.Errorf("stat blob: %w", err)
	}
	if err := os.WriteFile(s.keyPath(key)+tierSuffix, []byte(tier), 0o644); err != nil {
		return fmt.Errorf("write tier sidecar: %w", err)
	}
	return nil
}

// Tier reads the current retention tier; keys start HOT before any transition.
func (s *Storage) Tier(key string) (ports.StorageTier, error) {
	if err := validName(key); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(s.keyPath(key) + tierSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.TierHot, nil
		}
		return "", fmt.Errorf("read tier sidecar: %w", err)
	}
	return ports.StorageTier(strings.TrimSpace(string(raw))), nil
}

// Metadata reads the sidecar stored alongside one version; nil when the
// version was stored without metadata.
func (s *Storage) Metadata(key, version string) (map[string]string, error) {
	if err := validName(key); err != nil {
		return nil, err
	}
	if err := validName(version); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.blobPath(key, version) + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read blob metadata: %w", err)
	}
	var metadata map[string]string
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("decode blob metadata: %w", err)
	}
	return metadata, nil
}

func (s *Storage) blobPath(key, version string) string {
	return s.keyPath(key) + "." + version
}

func (s *Storage) keyPath(key string) string {
	return filepath.Join(s.basePath, key)
}

// validName keeps keys and versions inside the storage directory.
func validName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return domain.WrapError(domain.ErrInvalidInput, "resolve blob name",
			fmt.Errorf("unsafe name %q", name))
	}
	return nil
}
