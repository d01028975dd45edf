// Package domain – record snapshots
//
// This file defines the denormalized record snapshot shared by the records
// cache, the uniqueness guard, and the realtime change feed. A snapshot
// carries only what duplicate detection needs: the kind discriminant, the
// normalized business key, and the backend-assigned identifier.
package domain

import "strings"

// RecordKind discriminates the cached record collections. The values match
// the document types used by the dashboard clients.
type RecordKind string

const (
	KindConsignmentBooking    RecordKind = "consignment-note-booking"
	KindConsignmentNonBooking RecordKind = "consignment-note-non-booking"
	KindChallanBook           RecordKind = "challan-book"
	KindBilling               RecordKind = "billing"
)

// Valid reports whether k is one of the known record kinds.
func (k RecordKind) Valid() bool {
	switch k {
	case KindConsignmentBooking, KindConsignmentNonBooking, KindChallanBook, KindBilling:
		return true
	}
	return false
}

// ConsignmentRecordKind maps a ConsignmentNote.Kind value to its RecordKind.
func ConsignmentRecordKind(kind string) RecordKind {
	if kind == ConsignmentKindNonBooking {
		return KindConsignmentNonBooking
	}
	return KindConsignmentBooking
}

// CachedRecord is a denormalized snapshot of a persisted document, held in
// the in-memory records cache and read by the uniqueness guard.
type CachedRecord struct {
	Kind        RecordKind `json:"kind"`
	BusinessKey string     `json:"business_key"`
	BackendID   string     `json:"backend_id"`
}

// NormalizeBusinessKey trims surrounding whitespace and uppercases a
// business key. All key comparisons in the system go through this so that
// "lr-001", " LR-001 " and "Lr-001" are the same key.
func NormalizeBusinessKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
