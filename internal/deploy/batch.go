package deploy

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"SatVault/internal/logger"
)

// Manifest lists the coins of a batch deployment.
type Manifest struct {
	Assets []Request `yaml:"assets"` // Assets are deployed in order
}

// LoadManifest reads a YAML batch manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest:\n%w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s:\n%w", path, err)
	}

	if len(m.Assets) == 0 {
		return nil, fmt.Errorf("%w: manifest %s lists no assets", ErrInvalidRequest, path)
	}

	return &m, nil
}

// PrepareAll prepares every request concurrently. Module names must be
// unique within the batch. Results keep the request order.
func (p *Pipeline) PrepareAll(ctx context.Context, reqs []Request) ([]*Prepared, error) {
	seen := make(map[string]int, len(reqs))
	for i, r := range reqs {
		if j, dup := seen[r.Module]; dup {
			return nil, fmt.Errorf("%w: module %q appears at %d and %d", ErrInvalidRequest, r.Module, j, i)
		}
		seen[r.Module] = i
	}

	prepared := make([]*Prepared, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, r := range reqs {
		g.Go(func() error {
			prep, err := p.Prepare(ctx, r)
			if err != nil {
				return fmt.Errorf("asset %d (%s):\n%w", i, r.Module, err)
			}

			prepared[i] = prep

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return prepared, nil
}

// DeployAll prepares the whole batch first, then publishes one module at a
// time since the signer's gas coin cannot back two transactions at once.
// It stops at the first failed deployment and returns the results so far,
// the failed one included.
func (p *Pipeline) DeployAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	prepared, err := p.PrepareAll(ctx, reqs)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(prepared))

	for i, prep := range prepared {
		res, err := p.Publish(ctx, prep)
		results = append(results, res)

		if err != nil {
			return results, fmt.Errorf("asset %d (%s):\n%w", i, prep.Request.Module, err)
		}
	}

	logger.Info("batch deployed", "assets", len(results))

	return results, nil
}
