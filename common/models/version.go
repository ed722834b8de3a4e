package models

import "time"

// DraftVersion is the version string of the single mutable version per dandiset
const DraftVersion = "draft"

// ValidationStatus is the metadata validation lifecycle shared by assets and versions
type ValidationStatus string

const (
	StatusPending ValidationStatus = "PENDING"
	StatusValid   ValidationStatus = "VALID"
	StatusInvalid ValidationStatus = "INVALID"
)

// ValidationError is a single schema violation, ordered as emitted by the validator
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Version is one named snapshot of a dandiset's asset set
// Maps to: version table
type Version struct {
	ID int64 `db:"id" json:"-"`

	DandisetID int `db:"dandiset_id" json:"dandiset_id"`

	// Version string: "draft" or a generated semver-like string,
	// unique per dandiset
	Version string `db:"version" json:"version"`

	Metadata Metadata `db:"metadata" json:"metadata"`

	Status           ValidationStatus  `db:"status" json:"status"`
	ValidationErrors []ValidationError `db:"validation_errors" json:"validation_errors"`

	// Seq is a monotonically increasing modification token, bumped on
	// every asset-set mutation. Aggregation write-backs compare-and-swap
	// against it to detect concurrent modification.
	Seq int64 `db:"seq" json:"-"`

	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
}

// IsDraft reports whether this is the mutable draft version
func (v *Version) IsDraft() bool {
	return v.Version == DraftVersion
}
