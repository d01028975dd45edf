// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Consignment note kinds. Booking notes are raised at the origin branch,
// non-booking notes cover freight received from other carriers.
const (
	ConsignmentKindBooking    = "booking"
	ConsignmentKindNonBooking = "non-booking"
)

// ConsignmentNote represents a single lorry receipt (LR). The LR number is a
// user-entered business key required to be unique across active notes of the
// same kind; a booking and a non-booking note may carry the same number.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Kind: "booking" or "non-booking" (enforced by DB constraint).
//   - LRNumber: normalized business key; unique per kind among non-deleted rows.
//   - Consignor / Consignee: trading parties on the note.
//   - FromStation / ToStation: origin and destination stations.
//   - Freight: freight amount in rupees.
//   - NoteDate: the date printed on the note.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type ConsignmentNote struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	Kind        string         `json:"kind"         gorm:"type:varchar(16);not null;check:kind IN ('booking','non-booking');uniqueIndex:ux_kind_lr"`
	LRNumber    string         `json:"lr_number"    gorm:"type:varchar(64);not null;uniqueIndex:ux_kind_lr"`
	Consignor   string         `json:"consignor"    gorm:"type:varchar(255);not null"`
	Consignee   string         `json:"consignee"    gorm:"type:varchar(255);not null"`
	FromStation string         `json:"from_station" gorm:"type:varchar(128);not null"`
	ToStation   string         `json:"to_station"   gorm:"type:varchar(128);not null"`
	Freight     float64        `json:"freight"      gorm:"not null;default:0"`
	NoteDate    time.Time      `json:"note_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for ConsignmentNote.
func (ConsignmentNote) TableName() string { return "consignment_notes" }

// Challan represents a dispatch challan covering one vehicle trip. Several
// consignment notes travel under one challan; only the challan number is a
// guarded business key here.
type Challan struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	ChallanNumber string         `json:"challan_number" gorm:"type:varchar(64);not null;uniqueIndex:ux_challan_number"`
	VehicleNumber string         `json:"vehicle_number" gorm:"type:varchar(32);not null"`
	DriverName    string         `json:"driver_name"    gorm:"type:varchar(255);not null"`
	Route         string         `json:"route"          gorm:"type:varchar(255)"`
	ChallanDate   time.Time      `json:"challan_date"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Challan.
func (Challan) TableName() string { return "challans" }

// Bill represents a freight bill raised against a party. The bill number is
// a guarded business key.
type Bill struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	BillNumber string         `json:"bill_number" gorm:"type:varchar(64);not null;uniqueIndex:ux_bill_number"`
	Party      string         `json:"party"       gorm:"type:varchar(255);not null"`
	Amount     float64        `json:"amount"      gorm:"not null;default:0"`
	BillDate   time.Time      `json:"bill_date"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Bill.
func (Bill) TableName() string { return "bills" }
