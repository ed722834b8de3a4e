package models

import (
	"fmt"
	"time"
)

// EmbargoStatus represents the embargo lifecycle of a dandiset
type EmbargoStatus string

const (
	EmbargoOpen         EmbargoStatus = "OPEN"
	EmbargoEmbargoed    EmbargoStatus = "EMBARGOED"
	EmbargoUnembargoing EmbargoStatus = "UNEMBARGOING"
)

// Dandiset is the top-level dataset container
// Maps to: dandiset table
type Dandiset struct {
	// Numeric identifier, immutable once assigned
	ID int `db:"id" json:"id"`

	EmbargoStatus EmbargoStatus `db:"embargo_status" json:"embargo_status"`

	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
}

// Identifier returns the zero-padded external identifier (e.g. "000123")
func (d *Dandiset) Identifier() string {
	return fmt.Sprintf("%06d", d.ID)
}

// IsOpen reports whether the dandiset is publicly accessible
func (d *Dandiset) IsOpen() bool {
	return d.EmbargoStatus == EmbargoOpen
}
