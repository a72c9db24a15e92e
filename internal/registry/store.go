package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// PackageExt is the on-disk extension for stored packages.
const PackageExt = ".pkg.zst"

// ErrNotFound reports a package id with nothing stored under it.
var ErrNotFound = errors.New("package not found")

// Store persists app packages as zstd-compressed JSON files under a single
// directory, one file per package id. A sync.Map fronts the directory so
// reads after startup never touch disk.
type Store struct {
	dir      string
	packages sync.Map // id -> *types.Package
	size     int64    // atomic count of cached packages
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewStore opens a package store rooted at dir, creating the directory if
// needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	return &Store{dir: dir, enc: enc, dec: dec}, nil
}

// Save validates, stamps, and persists a package, replacing any previous
// version stored under the same id.
func (s *Store) Save(pkg *types.Package) error {
	if err := utils.ValidateAppID(pkg.ID); err != nil {
		return err
	}

	pkg.UpdatedAt = time.Now()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = pkg.UpdatedAt
	}
	if pkg.Digest == "" && pkg.Source != "" {
		pkg.Digest = utils.Fingerprint([]byte(pkg.Source))
	}

	data, err := sonic.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("failed to marshal package: %w", err)
	}

	if err := s.writeFile(s.packagePath(pkg.ID), s.enc.EncodeAll(data, nil)); err != nil {
		return fmt.Errorf("failed to write package: %w", err)
	}

	if _, existed := s.packages.Swap(pkg.ID, pkg); !existed {
		atomic.AddInt64(&s.size, 1)
	}

	return nil
}

// Get returns the package stored under id, reading through to disk on a
// cache miss.
func (s *Store) Get(id string) (*types.Package, error) {
	if err := utils.ValidateAppID(id); err != nil {
		return nil, err
	}

	if cached, ok := s.packages.Load(id); ok {
		return cached.(*types.Package), nil
	}

	data, err := os.ReadFile(s.packagePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read package: %w", err)
	}

	pkg, err := s.decode(data)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", id, err)
	}

	if _, existed := s.packages.Swap(id, pkg); !existed {
		atomic.AddInt64(&s.size, 1)
	}

	return pkg, nil
}

// List returns all cached packages sorted by id.
func (s *Store) List() []*types.Package {
	var packages []*types.Package

	s.packages.Range(func(_, value interface{}) bool {
		packages = append(packages, value.(*types.Package))
		return true
	})

	sort.Slice(packages, func(i, j int) bool { return packages[i].ID < packages[j].ID })
	return packages
}

// ListMetadata returns the catalog view of every stored package.
func (s *Store) ListMetadata() []types.PackageMetadata {
	packages := s.List()

	metadata := make([]types.PackageMetadata, len(packages))
	for i, pkg := range packages {
		metadata[i] = pkg.ToMetadata()
	}

	return metadata
}

// Delete removes a package from disk and cache.
func (s *Store) Delete(id string) error {
	if err := utils.ValidateAppID(id); err != nil {
		return err
	}

	_, cached := s.packages.Load(id)
	err := os.Remove(s.packagePath(id))
	switch {
	case err == nil:
	case os.IsNotExist(err):
		if !cached {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	default:
		return fmt.Errorf("failed to delete package: %w", err)
	}

	if _, existed := s.packages.LoadAndDelete(id); existed {
		atomic.AddInt64(&s.size, -1)
	}

	return nil
}

// Exists reports whether a package is stored under id.
func (s *Store) Exists(id string) bool {
	if _, ok := s.packages.Load(id); ok {
		return true
	}
	if utils.ValidateAppID(id) != nil {
		return false
	}

	_, err := os.Stat(s.packagePath(id))
	return err == nil
}

// LoadAll reads every stored package into the cache and returns how many
// are available. Files that fail to decode are skipped so one corrupt
// entry cannot block startup.
func (s *Store) LoadAll() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan store directory: %w", err)
	}

	var loaded int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, PackageExt) {
			continue
		}
		if _, err := s.Get(strings.TrimSuffix(name, PackageExt)); err != nil {
			continue
		}
		loaded++
	}

	return loaded, nil
}

// Stats returns store statistics.
func (s *Store) Stats() types.StoreStats {
	var total int
	var lastUpdated *time.Time

	s.packages.Range(func(_, value interface{}) bool {
		pkg := value.(*types.Package)
		total++
		if lastUpdated == nil || pkg.UpdatedAt.After(*lastUpdated) {
			t := pkg.UpdatedAt
			lastUpdated = &t
		}
		return true
	})

	return types.StoreStats{TotalPackages: total, LastUpdated: lastUpdated}
}

// Len returns the number of cached packages.
func (s *Store) Len() int {
	return int(atomic.LoadInt64(&s.size))
}

// Close releases the compression codecs.
func (s *Store) Close() {
	_ = s.enc.Close()
	s.dec.Close()
}

func (s *Store) decode(data []byte) (*types.Package, error) {
	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress package: %w", err)
	}

	var pkg types.Package
	if err := sonic.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal package: %w", err)
	}
	if pkg.ID == "" {
		return nil, errors.New("package has empty id field")
	}

	return &pkg, nil
}

// writeFile lands data via a temp file and rename so a crashed write can
// never leave a half-written package behind.
func (s *Store) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".pkg-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// packagePath maps a package id to its on-disk location.
func (s *Store) packagePath(id string) string {
	return filepath.Join(s.dir, id+PackageExt)
}
