package model

import (
	"fmt"
	"strconv"
	"strings"

	apperr "kgv/backend/pkg/errors"
)

// FileNumberKind distinguishes Aktenzeichen and Eingangsnummer sequences.
type FileNumberKind string

const (
	FileReferenceKind FileNumberKind = "file_reference"
	EntryNumberKind   FileNumberKind = "entry_number"
)

// FileNumber 案卷号 — 对应 file_numbers，(kind, district_code, year, number) 唯一
type FileNumber struct {
	Kind          FileNumberKind `gorm:"type:varchar(20);not null;uniqueIndex:ux_file_numbers,priority:1" json:"kind"`
	DistrictCode  string         `gorm:"type:varchar(10);not null;uniqueIndex:ux_file_numbers,priority:2" json:"district_code"`
	Year          int            `gorm:"not null;uniqueIndex:ux_file_numbers,priority:3"                  json:"year"`
	Number        int            `gorm:"not null;uniqueIndex:ux_file_numbers,priority:4"                  json:"number"`
	ApplicationID *string        `gorm:"type:uuid;index"                                                  json:"application_id,omitempty"`
	BaseModel
}

// TableName 指定表名
func (FileNumber) TableName() string { return "file_numbers" }

// NewFileNumber validates the parts of a case number.
func NewFileNumber(kind FileNumberKind, districtCode string, number, year int) (*FileNumber, error) {
	if kind != FileReferenceKind && kind != EntryNumberKind {
		return nil, apperr.Validation("Unbekannte Nummernart %q", kind)
	}
	if strings.TrimSpace(districtCode) == "" {
		return nil, apperr.Validation("Bezirkskürzel ist erforderlich")
	}
	if number < 1 {
		return nil, apperr.Validation("Laufende Nummer muss positiv sein")
	}
	if year < 1900 || year > 9999 {
		return nil, apperr.Validation("Ungültiges Jahr %d", year)
	}
	f := &FileNumber{Kind: kind, DistrictCode: districtCode, Number: number, Year: year}
	f.EnsureID()
	return f, nil
}

// String renders the canonical form: Aktenzeichen "M/0017/2024",
// Eingangsnummer "M-2024-00017".
func (f FileNumber) String() string {
	if f.Kind == EntryNumberKind {
		return fmt.Sprintf("%s-%d-%05d", f.DistrictCode, f.Year, f.Number)
	}
	return fmt.Sprintf("%s/%04d/%d", f.DistrictCode, f.Number, f.Year)
}

// ParseFileReference parses "CODE/NNNN/YYYY".
func ParseFileReference(s string) (*FileNumber, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return nil, apperr.Validation("Ungültiges Aktenzeichen %q", s)
	}
	number, err1 := strconv.Atoi(parts[1])
	year, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return nil, apperr.Validation("Ungültiges Aktenzeichen %q", s)
	}
	return NewFileNumber(FileReferenceKind, parts[0], number, year)
}

// ParseEntryNumber parses "CODE-YYYY-NNNNN". The district code may itself
// contain hyphens, so the last two segments are split off.
func ParseEntryNumber(s string) (*FileNumber, error) {
	s = strings.TrimSpace(s)
	last := strings.LastIndex(s, "-")
	if last <= 0 {
		return nil, apperr.Validation("Ungültige Eingangsnummer %q", s)
	}
	mid := strings.LastIndex(s[:last], "-")
	if mid <= 0 {
		return nil, apperr.Validation("Ungültige Eingangsnummer %q", s)
	}
	year, err1 := strconv.Atoi(s[mid+1 : last])
	number, err2 := strconv.Atoi(s[last+1:])
	if err1 != nil || err2 != nil {
		return nil, apperr.Validation("Ungültige Eingangsnummer %q", s)
	}
	return NewFileNumber(EntryNumberKind, s[:mid], number, year)
}

func formatArea(area float64) string {
	return strconv.FormatFloat(area, 'f', -1, 64) + " m²"
}
