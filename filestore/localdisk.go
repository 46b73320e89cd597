package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// LocalDisk persists blobs under a rooted base directory. Paths are joined
// onto the base and must not escape it. Reads of the same path arriving
// concurrently (e.g. a parent and a delegate restoring overlapping session
// state at once) are deduplicated through a singleflight.Group rather than
// issuing redundant disk I/O.
type LocalDisk struct {
	base string
	log  zerolog.Logger
	sf   singleflight.Group
}

// NewLocalDisk returns a LocalDisk rooted at base. base is created if it
// does not exist. log receives write/read/delete tracing at Debug level and
// rename failures at Error level; pass zerolog.Nop() to silence it.
func NewLocalDisk(base string, log zerolog.Logger) (*LocalDisk, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &LocalDisk{
		base: base,
		log:  log.With().Str("component", "filestore.localdisk").Str("base", base).Logger(),
	}, nil
}

func (d *LocalDisk) resolve(path string) string {
	return filepath.Join(d.base, filepath.FromSlash(path))
}

func (d *LocalDisk) Write(_ context.Context, path string, data []byte) error {
	full := d.resolve(path)
	d.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("write")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, full); err != nil {
		d.log.Error().Err(err).Str("path", path).Msg("rename failed")
		return err
	}
	return nil
}

func (d *LocalDisk) Read(_ context.Context, path string) ([]byte, error) {
	v, err, shared := d.sf.Do(path, func() (any, error) {
		full := d.resolve(path)
		data, err := os.ReadFile(full)
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return data, err
	})
	d.log.Debug().Str("path", path).Bool("shared", shared).Msg("read")
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (d *LocalDisk) List(_ context.Context, prefix string) ([]string, error) {
	root := d.resolve(prefix)
	// prefix may name a directory or a file-name prefix; walk from its
	// parent so both cases work without assuming which one it is.
	walkRoot := filepath.Dir(root)
	if _, err := os.Stat(root); err == nil {
		walkRoot = root
	}
	var out []string
	err := filepath.WalkDir(walkRoot, func(p string, de os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if de.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *LocalDisk) Delete(_ context.Context, path string) error {
	full := d.resolve(path)
	d.log.Debug().Str("path", path).Msg("delete")
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
