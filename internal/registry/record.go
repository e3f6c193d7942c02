package registry

import (
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"SatVault/internal/types"
)

// ErrCorruptRecord is returned when a stored value cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt registry record")

// Deployment is the durable history entry of one publish attempt.
type Deployment struct {
	Digest        string                 // Digest is the transaction digest
	PackageID     string                 // PackageID is the published package
	MetadataID    string                 // MetadataID is the coin metadata object
	TreasuryCapID string                 // TreasuryCapID is the treasury capability
	UpgradeCapID  string                 // UpgradeCapID is the upgrade capability
	TypeName      string                 // TypeName is package::module::TYPE
	Module        string                 // Module is the instantiated module name
	Symbol        string                 // Symbol is the coin ticker
	Name          string                 // Name is the coin display name
	Decimals      uint8                  // Decimals is the coin precision
	Status        types.DeploymentStatus // Status says how far the deployment got
	TemplateHash  [32]byte               // TemplateHash is the blake3 hash of the template bytes
	PublishedAt   time.Time              // PublishedAt is when the record was written
	Stage         string                 // Stage is the failing stage, if any
	Error         string                 // Error is the failure text, if any
}

// encodeDeployment serializes d as a flatbuffers DeploymentRecord.
func encodeDeployment(d *Deployment) []byte {
	b := flatbuffers.NewBuilder(512)

	// Strings and vectors must be created before the table starts.
	digest := b.CreateString(d.Digest)
	pkg := b.CreateString(d.PackageID)
	metadata := b.CreateString(d.MetadataID)
	treasury := b.CreateString(d.TreasuryCapID)
	upgrade := b.CreateString(d.UpgradeCapID)
	typeName := b.CreateString(d.TypeName)
	module := b.CreateString(d.Module)
	symbol := b.CreateString(d.Symbol)
	name := b.CreateString(d.Name)
	stage := b.CreateString(d.Stage)
	msg := b.CreateString(d.Error)
	hash := b.CreateByteVector(d.TemplateHash[:])

	types.DeploymentRecordStart(b)
	types.DeploymentRecordAddDigest(b, digest)
	types.DeploymentRecordAddPackageId(b, pkg)
	types.DeploymentRecordAddMetadataId(b, metadata)
	types.DeploymentRecordAddTreasuryCapId(b, treasury)
	types.DeploymentRecordAddUpgradeCapId(b, upgrade)
	types.DeploymentRecordAddTypeName(b, typeName)
	types.DeploymentRecordAddModuleName(b, module)
	types.DeploymentRecordAddSymbol(b, symbol)
	types.DeploymentRecordAddName(b, name)
	types.DeploymentRecordAddDecimals(b, d.Decimals)
	types.DeploymentRecordAddStatus(b, d.Status)
	types.DeploymentRecordAddTemplateHash(b, hash)
	types.DeploymentRecordAddPublishedAt(b, uint64(d.PublishedAt.UnixMilli()))
	types.DeploymentRecordAddStage(b, stage)
	types.DeploymentRecordAddError(b, msg)
	root := types.DeploymentRecordEnd(b)

	types.FinishDeploymentRecordBuffer(b, root)

	return b.FinishedBytes()
}

// decodeDeployment parses a flatbuffers DeploymentRecord.
func decodeDeployment(data []byte) (d *Deployment, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptRecord, len(data))
	}

	// The flatbuffers accessors panic on out-of-range offsets.
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("%w: %v", ErrCorruptRecord, r)
		}
	}()

	rec := types.GetRootAsDeploymentRecord(data, 0)

	d = &Deployment{
		Digest:        string(rec.Digest()),
		PackageID:     string(rec.PackageId()),
		MetadataID:    string(rec.MetadataId()),
		TreasuryCapID: string(rec.TreasuryCapId()),
		UpgradeCapID:  string(rec.UpgradeCapId()),
		TypeName:      string(rec.TypeName()),
		Module:        string(rec.ModuleName()),
		Symbol:        string(rec.Symbol()),
		Name:          string(rec.Name()),
		Decimals:      rec.Decimals(),
		Status:        rec.Status(),
		PublishedAt:   time.UnixMilli(int64(rec.PublishedAt())),
		Stage:         string(rec.Stage()),
		Error:         string(rec.Error()),
	}

	hash := rec.TemplateHashBytes()
	if len(hash) != len(d.TemplateHash) {
		return nil, fmt.Errorf("%w: template hash has %d bytes", ErrCorruptRecord, len(hash))
	}
	copy(d.TemplateHash[:], hash)

	return d, nil
}
