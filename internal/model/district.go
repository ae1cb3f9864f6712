package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	apperr "kgv/backend/pkg/errors"
)

// DistrictStatus 区（Bezirk）状态
type DistrictStatus string

const (
	DistrictActive   DistrictStatus = "active"
	DistrictInactive DistrictStatus = "inactive"
	DistrictArchived DistrictStatus = "archived"
)

// AllDistrictStatuses lists every district status.
func AllDistrictStatuses() []DistrictStatus {
	return []DistrictStatus{DistrictActive, DistrictInactive, DistrictArchived}
}

// Valid reports whether s is a known status.
func (s DistrictStatus) Valid() bool {
	switch s {
	case DistrictActive, DistrictInactive, DistrictArchived:
		return true
	}
	return false
}

// CanTransitionTo: active and inactive toggle freely, both may move to
// archived, archived is terminal.
func (s DistrictStatus) CanTransitionTo(next DistrictStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case DistrictActive:
		return next == DistrictInactive || next == DistrictArchived
	case DistrictInactive:
		return next == DistrictActive || next == DistrictArchived
	}
	return false
}

// MaxDistrictNameLength is the limit for the short district code.
const MaxDistrictNameLength = 10

var districtNamePattern = regexp.MustCompile(`^[\p{L}\p{M}0-9-]+$`)

var (
	ErrDistrictNameRequired = apperr.Validation("Bezirksname ist erforderlich")
	ErrDistrictNameTooLong  = apperr.Validation("Bezirksname darf höchstens %d Zeichen lang sein", MaxDistrictNameLength)
	ErrDistrictNameCharset  = apperr.Validation("Bezirksname darf nur Buchstaben, Ziffern und Bindestriche enthalten")
	ErrDistrictBornArchived = apperr.Validation("Ein Bezirk kann nicht im Status archiviert angelegt werden")
	ErrDistrictStatusBad    = apperr.Validation("Unbekannter Bezirksstatus")
)

// NormalizeDistrictName trims and NFC-normalises a district code.
func NormalizeDistrictName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateDistrictName checks a normalised district code.
func ValidateDistrictName(name string) error {
	if name == "" {
		return ErrDistrictNameRequired
	}
	if utf8.RuneCountInString(name) > MaxDistrictNameLength {
		return ErrDistrictNameTooLong
	}
	if !districtNamePattern.MatchString(name) {
		return ErrDistrictNameCharset
	}
	return nil
}

// District 区 — 对应 districts
type District struct {
	Name        string         `gorm:"type:varchar(10);not null;uniqueIndex:ux_districts_name" json:"name"`
	DisplayName string         `gorm:"type:varchar(100)"                                      json:"display_name,omitempty"`
	Description string         `gorm:"type:text"                                              json:"description,omitempty"`
	SortOrder   int            `gorm:"not null;default:0"                                     json:"sort_order"`
	TotalArea   float64        `gorm:"type:numeric(12,2);not null;default:0"                  json:"total_area"`
	Status      DistrictStatus `gorm:"type:varchar(20);not null;default:'active';index"       json:"status"`
	PlotCount   int            `gorm:"not null;default:0"                                     json:"plot_count"`
	SoftDeleteModel
}

// TableName 指定表名
func (District) TableName() string { return "districts" }

// NewDistrict is the factory for a new active district.
func NewDistrict(name string) (*District, error) {
	name = NormalizeDistrictName(name)
	if err := ValidateDistrictName(name); err != nil {
		return nil, err
	}
	d := &District{Name: name, Status: DistrictActive}
	d.EnsureID()
	return d, nil
}

// CanAcceptPlots 仅活跃区可新增地块
func (d *District) CanAcceptPlots() bool { return d.Status == DistrictActive }

// Label is the display name, falling back to the code.
func (d *District) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

// TransitionTo applies a guarded status change.
func (d *District) TransitionTo(next DistrictStatus, by string, at time.Time) error {
	if !next.Valid() {
		return ErrDistrictStatusBad
	}
	if !d.Status.CanTransitionTo(next) {
		return apperr.Conflict("Statuswechsel des Bezirks von %q nach %q ist nicht zulässig", d.Status, next)
	}
	if d.Status == next {
		return nil
	}
	d.Status = next
	d.StampUpdated(by, at)
	return nil
}

// Archive moves the district to archived; used when plots still reference it.
func (d *District) Archive(by string, at time.Time) error {
	return d.TransitionTo(DistrictArchived, by, at)
}
