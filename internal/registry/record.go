// Package registry defines the shared CA (Certificado de Aprovação) registry
// model: the persisted certificate record, the positional raw row layout of the
// government export, and the load batch that stamps every record of one run.
package registry

import (
	"strings"
	"time"
)

// FieldCount is the number of columns of the published CAEPI export.
const FieldCount = 19

// DefaultTable is the registry table name used when none is configured.
const DefaultTable = "ca_registry"

// RawRow is one parsed line of the source feed. Valid rows carry exactly
// FieldCount items; it never leaves the parse/normalize phase.
type RawRow []string

// Record is a single published certificate as stored in the registry table.
// The registry is tenant independent; every organization reads the same copy.
type Record struct {
	CertificateNumber    string     `gorm:"column:certificate_number" json:"certificate_number"`
	ExpiryDate           *time.Time `gorm:"column:expiry_date" json:"expiry_date,omitempty"`
	StatusText           string     `gorm:"column:status_text" json:"status_text"`
	ProcessNumber        string     `gorm:"column:process_number" json:"process_number"`
	IssuerTaxID          string     `gorm:"column:issuer_tax_id" json:"issuer_tax_id"`
	IssuerName           string     `gorm:"column:issuer_name" json:"issuer_name"`
	EquipmentNature      string     `gorm:"column:equipment_nature" json:"equipment_nature"`
	EquipmentName        string     `gorm:"column:equipment_name" json:"equipment_name"`
	EquipmentDescription string     `gorm:"column:equipment_description" json:"equipment_description"`
	Brand                string     `gorm:"column:brand" json:"brand"`
	Reference            string     `gorm:"column:reference" json:"reference"`
	Color                string     `gorm:"column:color" json:"color"`
	LabApprovalText      string     `gorm:"column:lab_approval_text" json:"lab_approval_text"`
	LabRestrictionText   string     `gorm:"column:lab_restriction_text" json:"lab_restriction_text"`
	LabAnalysisNotes     string     `gorm:"column:lab_analysis_notes" json:"lab_analysis_notes"`
	LabTaxID             string     `gorm:"column:lab_tax_id" json:"lab_tax_id"`
	LabName              string     `gorm:"column:lab_name" json:"lab_name"`
	LabReportNumber      string     `gorm:"column:lab_report_number" json:"lab_report_number"`
	StandardReference    string     `gorm:"column:standard_reference" json:"standard_reference"`
	LastUpdatedAt        time.Time  `gorm:"column:last_updated_at" json:"last_updated_at"`
}

// Columns lists the registry columns in source order followed by the batch
// timestamp. Storage backends insert positional rows in exactly this order.
var Columns = []string{
	"certificate_number",
	"expiry_date",
	"status_text",
	"process_number",
	"issuer_tax_id",
	"issuer_name",
	"equipment_nature",
	"equipment_name",
	"equipment_description",
	"brand",
	"reference",
	"color",
	"lab_approval_text",
	"lab_restriction_text",
	"lab_analysis_notes",
	"lab_tax_id",
	"lab_name",
	"lab_report_number",
	"standard_reference",
	"last_updated_at",
}

// ExpiryColumn is the position of the expiry date in a RawRow.
const ExpiryColumn = 1

// HasKey reports whether the record carries a certificate number.
func (r Record) HasKey() bool {
	return strings.TrimSpace(r.CertificateNumber) != ""
}

// ExpiredAt reports whether the certificate expiry date lies strictly before
// the calendar day of now. Records without an expiry date never expire.
func (r Record) ExpiredAt(now time.Time) bool {
	if r.ExpiryDate == nil {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := r.ExpiryDate.Date()
	expiry := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return expiry.Before(today)
}

// Clone returns a copy of r that shares no pointers with it.
func (r Record) Clone() Record {
	if r.ExpiryDate != nil {
		d := *r.ExpiryDate
		r.ExpiryDate = &d
	}
	return r
}

// Values returns the record as a positional row aligned to Columns. A nil
// expiry date stays nil so drivers write SQL NULL.
func (r Record) Values() []any {
	var expiry any
	if r.ExpiryDate != nil {
		expiry = *r.ExpiryDate
	}
	return []any{
		r.CertificateNumber,
		expiry,
		r.StatusText,
		r.ProcessNumber,
		r.IssuerTaxID,
		r.IssuerName,
		r.EquipmentNature,
		r.EquipmentName,
		r.EquipmentDescription,
		r.Brand,
		r.Reference,
		r.Color,
		r.LabApprovalText,
		r.LabRestrictionText,
		r.LabAnalysisNotes,
		r.LabTaxID,
		r.LabName,
		r.LabReportNumber,
		r.StandardReference,
		r.LastUpdatedAt,
	}
}

// TextFields returns pointers to the free-text fields in source order
// (positions 2..18), so callers can fill them from a RawRow without repeating
// the column layout.
func (r *Record) TextFields() []*string {
	return []*string{
		&r.StatusText,
		&r.ProcessNumber,
		&r.IssuerTaxID,
		&r.IssuerName,
		&r.EquipmentNature,
		&r.EquipmentName,
		&r.EquipmentDescription,
		&r.Brand,
		&r.Reference,
		&r.Color,
		&r.LabApprovalText,
		&r.LabRestrictionText,
		&r.LabAnalysisNotes,
		&r.LabTaxID,
		&r.LabName,
		&r.LabReportNumber,
		&r.StandardReference,
	}
}
