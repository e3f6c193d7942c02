package deploy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"SatVault/internal/logger"
	"SatVault/internal/pkginfo"
	"SatVault/internal/publish"
	"SatVault/internal/registry"
	"SatVault/internal/resolve"
	"SatVault/internal/types"
)

// Dump is the output of `sui move build --dump-bytecode-as-base64`.
type Dump struct {
	Modules      []string `json:"modules"`      // Modules are base64 module bytes
	Dependencies []string `json:"dependencies"` // Dependencies are package ids
}

// LoadDump reads a bytecode dump and decodes its modules.
func LoadDump(path string) ([][]byte, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read dump:\n%w", err)
	}

	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, nil, fmt.Errorf("parse dump %s:\n%w", path, err)
	}

	if len(d.Modules) == 0 {
		return nil, nil, fmt.Errorf("%w: dump %s has no modules", ErrInvalidRequest, path)
	}

	modules := make([][]byte, len(d.Modules))
	for i, m := range d.Modules {
		b, err := base64.StdEncoding.DecodeString(m)
		if err != nil {
			return nil, nil, fmt.Errorf("module %d:\n%w", i, err)
		}
		modules[i] = b
	}

	return modules, d.Dependencies, nil
}

// ReadTemplate reads a compiled module from path. The file holds either the
// raw bytes or their hex encoding, with or without a 0x prefix.
func ReadTemplate(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template:\n%w", err)
	}

	if bytes.HasPrefix(data, []byte{0xA1, 0x1C, 0xEB, 0x0B}) {
		return data, nil
	}

	text := bytes.TrimPrefix(bytes.TrimSpace(data), []byte("0x"))

	raw := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(raw, text); err != nil {
		return nil, fmt.Errorf("template %s is neither a module nor hex:\n%w", path, err)
	}

	return raw, nil
}

// PackageResult is what a package publication produced.
type PackageResult struct {
	Digest    string          // Digest is the publish transaction
	PackageID string          // PackageID is the published package
	Objects   resolve.Objects // Objects holds the resolved expectations
	Missing   []string        // Missing lists expectations that were not found
}

// PublishPackage publishes prebuilt modules and resolves exps against the
// new package. Type templates may use {package} only. The package id and
// every resolved object are persisted under their logical names.
func (p *Pipeline) PublishPackage(ctx context.Context, modules [][]byte, deps []string, exps resolve.Expectations) (*PackageResult, error) {
	start := time.Now()

	outcome, err := p.submitter.Submit(ctx, publish.Request{
		Modules:      modules,
		Dependencies: deps,
		Ready:        exps.Ready("", ""),
	})
	if err != nil {
		res := &PackageResult{Digest: submittedDigest(outcome, err)}

		return res, &StageError{Stage: StageSubmit, Digest: res.Digest, Err: err}
	}

	res := &PackageResult{Digest: outcome.Digest}

	resolution, err := resolve.Resolve(outcome, "", "", exps)
	if err != nil {
		return res, &StageError{Stage: StageResolve, Digest: res.Digest, Err: err}
	}

	res.PackageID = resolution.PackageID
	res.Objects = resolution.Objects
	res.Missing = resolution.Objects.Missing(exps.Names()...)

	defs := []pkginfo.Definition{{Name: pkginfo.NamePackageID, Value: res.PackageID}}
	for _, e := range exps {
		if id, ok := res.Objects.Get(e.Name); ok {
			defs = append(defs, pkginfo.Definition{Name: e.Name, Value: id})
		}
	}

	var stageErr *StageError
	if err := resolution.Objects.Err(exps.Names()...); err != nil {
		stageErr = &StageError{Stage: StageResolve, Digest: res.Digest, Err: err}
	}

	if err := p.persister.Write(defs); err != nil && stageErr == nil {
		stageErr = &StageError{Stage: StagePersist, Digest: res.Digest, Err: err}
	}

	if err := p.recordPackage(res, modules, stageErr); err != nil && stageErr == nil {
		stageErr = &StageError{Stage: StageArchive, Digest: res.Digest, Err: err}
	}

	logger.Info("package published",
		"digest", res.Digest,
		"package", res.PackageID,
		"modules", len(modules),
		"missing", len(res.Missing),
		logger.Timed(start),
	)

	if stageErr != nil {
		return res, stageErr
	}

	return res, nil
}

// recordPackage saves a history entry and archives each module under
// digest/index.
func (p *Pipeline) recordPackage(res *PackageResult, modules [][]byte, stageErr *StageError) error {
	if p.history == nil {
		return nil
	}

	for i, m := range modules {
		if err := p.history.ArchiveModule(res.Digest+"/"+strconv.Itoa(i), m); err != nil {
			return err
		}
	}

	d := &registry.Deployment{
		Digest:      res.Digest,
		PackageID:   res.PackageID,
		Status:      types.DeploymentStatusComplete,
		PublishedAt: p.now(),
	}

	if stageErr != nil {
		d.Status = types.DeploymentStatusPartial
		d.Stage = string(stageErr.Stage)
		d.Error = stageErr.Err.Error()
	}

	return p.history.SaveDeployment(d)
}
