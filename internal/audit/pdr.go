// Package audit keeps Process Decision Records: one row per state-changing
// host command, holding a hash of its inputs and how it turned out.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"

	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/store"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	store *store.Store
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(s *store.Store) *PDRWriter {
	return &PDRWriter{store: s}
}

// Record writes an entry for action. Audit failures are logged and never
// fail the command being audited; the returned entry is nil then.
func (w *PDRWriter) Record(action string, inputs interface{}, outcome, taskID, details string) *models.PDREntry {
	entry, err := w.store.WritePDR(action, HashInputs(inputs), outcome, taskID, details)
	if err != nil {
		log.Printf("audit: %s: %v", action, err)
		return nil
	}
	return entry
}

// RecordResult records action with an outcome derived from err.
func (w *PDRWriter) RecordResult(action string, inputs interface{}, taskID string, err error) *models.PDREntry {
	if err != nil {
		return w.Record(action, inputs, OutcomeFailure, taskID, err.Error())
	}
	return w.Record(action, inputs, OutcomeSuccess, taskID, "")
}

// Recent returns up to limit entries, newest first.
func (w *PDRWriter) Recent(limit int) ([]models.PDREntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return w.store.ListPDR(limit)
}

// HashInputs returns the hex SHA-256 of the JSON encoding of inputs.
func HashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
