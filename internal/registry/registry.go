// Package registry keeps a durable local history of deployments: the
// flatbuffers record of each publish, the compressed module bytes that were
// published, and a copy of the persisted definitions.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/klauspost/compress/zstd"

	"SatVault/internal/pkginfo"
)

// Key prefixes.
var (
	prefixDeployment = []byte("dep/")
	prefixModule     = []byte("mod/")
	prefixDefinition = []byte("def/")
)

// ErrNotFound is returned when a digest has no entry.
var ErrNotFound = errors.New("not found in registry")

// Registry is a Pebble-backed deployment history.
// It is safe for concurrent use.
type Registry struct {
	store *store // store is the key-value layer
}

// Open opens or creates the registry at dir.
func Open(dir string) (*Registry, error) {
	s, err := openStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open registry %s:\n%w", dir, err)
	}

	return &Registry{store: s}, nil
}

// Close closes the registry.
func (r *Registry) Close() error {
	return r.store.close()
}

// SaveDeployment writes d under its digest, replacing any earlier record.
func (r *Registry) SaveDeployment(d *Deployment) error {
	if d.Digest == "" {
		return errors.New("deployment has no digest")
	}

	if err := r.store.write(keyValue{key: key(prefixDeployment, d.Digest), value: encodeDeployment(d)}); err != nil {
		return fmt.Errorf("save deployment %s:\n%w", d.Digest, err)
	}

	return nil
}

// Deployment returns the record stored for digest.
func (r *Registry) Deployment(digest string) (*Deployment, error) {
	data, found, err := r.store.lookup(key(prefixDeployment, digest))
	if err != nil {
		return nil, fmt.Errorf("read deployment %s:\n%w", digest, err)
	}

	if !found {
		return nil, fmt.Errorf("deployment %s: %w", digest, ErrNotFound)
	}

	return decodeDeployment(data)
}

// Deployments returns every stored record, oldest first.
func (r *Registry) Deployments() ([]*Deployment, error) {
	var out []*Deployment

	err := r.store.scan(prefixDeployment, func(digest, v []byte) error {
		d, err := decodeDeployment(v)
		if err != nil {
			return fmt.Errorf("deployment %s:\n%w", digest, err)
		}

		out = append(out, d)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan deployments:\n%w", err)
	}

	slices.SortStableFunc(out, func(a, b *Deployment) int {
		return a.PublishedAt.Compare(b.PublishedAt)
	})

	return out, nil
}

// ArchiveModule stores the zstd-compressed module bytes published by digest.
func (r *Registry) ArchiveModule(digest string, module []byte) error {
	compressed, err := compress(module)
	if err != nil {
		return fmt.Errorf("compress module:\n%w", err)
	}

	if err := r.store.write(keyValue{key: key(prefixModule, digest), value: compressed}); err != nil {
		return fmt.Errorf("archive module %s:\n%w", digest, err)
	}

	return nil
}

// Module returns the module bytes archived for digest.
func (r *Registry) Module(digest string) ([]byte, error) {
	data, found, err := r.store.lookup(key(prefixModule, digest))
	if err != nil {
		return nil, fmt.Errorf("read module %s:\n%w", digest, err)
	}

	if !found {
		return nil, fmt.Errorf("module %s: %w", digest, ErrNotFound)
	}

	module, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress module %s:\n%w", digest, err)
	}

	return module, nil
}

// Upsert stores definitions in one batch. It satisfies pkginfo.Store.
func (r *Registry) Upsert(defs []pkginfo.Definition) error {
	pairs := make([]keyValue, 0, len(defs))

	for _, d := range defs {
		if !pkginfo.ValidName(d.Name) {
			return fmt.Errorf("%w: %q", pkginfo.ErrInvalidName, d.Name)
		}

		pairs = append(pairs, keyValue{key: key(prefixDefinition, d.Name), value: []byte(d.Value)})
	}

	if err := r.store.write(pairs...); err != nil {
		return fmt.Errorf("store definitions:\n%w", err)
	}

	return nil
}

// Lookup returns a stored definition. It satisfies pkginfo.Store.
func (r *Registry) Lookup(name string) (string, bool, error) {
	data, found, err := r.store.lookup(key(prefixDefinition, name))
	if err != nil {
		return "", false, fmt.Errorf("read definition %s:\n%w", name, err)
	}

	return string(data), found, nil
}

// Definitions returns every stored definition in name order.
func (r *Registry) Definitions() ([]pkginfo.Definition, error) {
	var defs []pkginfo.Definition

	err := r.store.scan(prefixDefinition, func(name, v []byte) error {
		defs = append(defs, pkginfo.Definition{Name: string(name), Value: string(v)})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan definitions:\n%w", err)
	}

	return defs, nil
}

// key joins a prefix and a name.
func key(prefix []byte, name string) []byte {
	k := make([]byte, 0, len(prefix)+len(name))
	k = append(k, prefix...)

	return append(k, name...)
}

// compress encodes data with zstd at the default level.
func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompress decodes zstd data.
func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
