package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"

	apperr "kgv/backend/pkg/errors"
)

// PlotStatus 地块（Parzelle）状态
type PlotStatus string

const (
	PlotAvailable        PlotStatus = "available"
	PlotReserved         PlotStatus = "reserved"
	PlotAssigned         PlotStatus = "assigned"
	PlotUnavailable      PlotStatus = "unavailable"
	PlotUnderDevelopment PlotStatus = "under_development"
	PlotDecommissioned   PlotStatus = "decommissioned"
	PlotPendingApproval  PlotStatus = "pending_approval"
)

// AllPlotStatuses lists every plot status.
func AllPlotStatuses() []PlotStatus {
	return []PlotStatus{
		PlotAvailable, PlotReserved, PlotAssigned, PlotUnavailable,
		PlotUnderDevelopment, PlotDecommissioned, PlotPendingApproval,
	}
}

// plotTransitions is the guarded status graph. Assignment and release go
// through Assign/Release and are listed here for completeness.
var plotTransitions = map[PlotStatus][]PlotStatus{
	PlotAvailable:        {PlotReserved, PlotAssigned, PlotUnavailable, PlotUnderDevelopment, PlotDecommissioned, PlotPendingApproval},
	PlotReserved:         {PlotAvailable, PlotAssigned, PlotUnavailable},
	PlotAssigned:         {PlotAvailable, PlotUnavailable},
	PlotUnavailable:      {PlotAvailable, PlotUnderDevelopment, PlotDecommissioned},
	PlotUnderDevelopment: {PlotAvailable, PlotPendingApproval, PlotDecommissioned},
	PlotPendingApproval:  {PlotAvailable, PlotUnderDevelopment, PlotDecommissioned},
	PlotDecommissioned:   {},
}

// Valid reports whether s is a known status.
func (s PlotStatus) Valid() bool {
	_, ok := plotTransitions[s]
	return ok
}

// CanTransitionTo reports whether the status graph allows s → next.
func (s PlotStatus) CanTransitionTo(next PlotStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range plotTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsAssignable 可直接分配的状态
func (s PlotStatus) IsAssignable() bool {
	return s == PlotAvailable || s == PlotReserved
}

var (
	ErrPlotNumberRequired = apperr.Validation("Parzellennummer ist erforderlich")
	ErrPlotNumberTooLong  = apperr.Validation("Die Parzellennummer darf höchstens 20 Zeichen lang sein")
	ErrPlotStatusBad      = apperr.Validation("Unbekannter Parzellenstatus")
	ErrPlotReasonRequired = apperr.Validation("Für eine erzwungene Zuweisung ist eine Begründung erforderlich")
)

const (
	MaxPlotNumberLength = 20
	// 大小写折叠最多把一个字符展开为三个（如 ﬃ → ffi）
	MaxPlotNumberKeyLength = 3 * MaxPlotNumberLength
)

var numberFolder = cases.Fold()

// PlotNumberKey is the case-insensitive uniqueness key of a plot number.
func PlotNumberKey(number string) string {
	return numberFolder.String(strings.TrimSpace(number))
}

// Plot 地块 — 对应 plots
type Plot struct {
	Number          string     `gorm:"type:varchar(20);not null"                                        json:"number"`
	NumberKey       string     `gorm:"type:varchar(60);not null;uniqueIndex:ux_plots_district_number,priority:2" json:"-"`
	DistrictID      string     `gorm:"type:uuid;not null;index;uniqueIndex:ux_plots_district_number,priority:1" json:"district_id"`
	District        *District  `gorm:"foreignKey:DistrictID"                                            json:"district,omitempty"`
	Area            float64    `gorm:"type:numeric(10,2);not null;default:0"                            json:"area"`
	Price           *float64   `gorm:"type:numeric(10,2)"                                               json:"price,omitempty"`
	HasWater        bool       `gorm:"not null;default:false"                                           json:"has_water"`
	HasElectricity  bool       `gorm:"not null;default:false"                                           json:"has_electricity"`
	Priority        int        `gorm:"not null;default:0"                                               json:"priority"`
	Status          PlotStatus `gorm:"type:varchar(30);not null;default:'available';index"              json:"status"`
	Description     string     `gorm:"type:text"                                                        json:"description,omitempty"`
	Gemarkung       string     `gorm:"type:varchar(100)"                                                json:"gemarkung,omitempty"`
	Flur            string     `gorm:"type:varchar(50)"                                                 json:"flur,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	AssignmentNotes string     `gorm:"type:text"                                                        json:"assignment_notes,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Plot) TableName() string { return "plots" }

// NewPlot creates an available plot in a district.
func NewPlot(districtID, number string) (*Plot, error) {
	number = strings.TrimSpace(number)
	if err := validatePlotNumber(number); err != nil {
		return nil, err
	}
	p := &Plot{
		Number:     number,
		NumberKey:  PlotNumberKey(number),
		DistrictID: districtID,
		Status:     PlotAvailable,
	}
	p.EnsureID()
	return p, nil
}

// Renumber changes the number and its uniqueness key together.
func (p *Plot) Renumber(number string) error {
	number = strings.TrimSpace(number)
	if err := validatePlotNumber(number); err != nil {
		return err
	}
	p.Number = number
	p.NumberKey = PlotNumberKey(number)
	return nil
}

func validatePlotNumber(number string) error {
	switch n := utf8.RuneCountInString(number); {
	case n == 0:
		return ErrPlotNumberRequired
	case n > MaxPlotNumberLength:
		return ErrPlotNumberTooLong
	}
	return nil
}

// AssignOptions carries the optional inputs of an assignment.
type AssignOptions struct {
	At       time.Time
	Notes    string
	Priority *int
	Force    bool
	Reason   string
	By       string
}

// Assign binds the plot. Without Force the status must be assignable; with
// Force a non-empty reason is mandatory.
func (p *Plot) Assign(opts AssignOptions) error {
	if opts.Force && strings.TrimSpace(opts.Reason) == "" {
		return ErrPlotReasonRequired
	}
	if !opts.Force && !p.Status.IsAssignable() {
		return apperr.Conflict("Parzelle %s kann im Status %q nicht zugewiesen werden", p.Number, p.Status)
	}
	at := opts.At
	p.Status = PlotAssigned
	p.AssignedAt = &at
	p.AssignmentNotes = strings.TrimSpace(opts.Notes)
	if opts.Priority != nil {
		p.Priority = *opts.Priority
	}
	p.StampUpdated(opts.By, at)
	return nil
}

// Reserve holds an available plot for an upcoming offer.
func (p *Plot) Reserve(by string, at time.Time) error {
	if p.Status != PlotAvailable {
		return apperr.Conflict("Parzelle %s kann im Status %q nicht reserviert werden", p.Number, p.Status)
	}
	p.Status = PlotReserved
	p.StampUpdated(by, at)
	return nil
}

// Release returns an assigned or reserved plot to the available pool.
func (p *Plot) Release(by string, at time.Time) error {
	if p.Status != PlotAssigned && p.Status != PlotReserved {
		return apperr.Conflict("Parzelle %s ist weder zugewiesen noch reserviert", p.Number)
	}
	p.Status = PlotAvailable
	p.AssignedAt = nil
	p.AssignmentNotes = ""
	p.StampUpdated(by, at)
	return nil
}

// TransitionTo applies a guarded status change.
func (p *Plot) TransitionTo(next PlotStatus, by string, at time.Time) error {
	if !next.Valid() {
		return ErrPlotStatusBad
	}
	if !p.Status.CanTransitionTo(next) {
		return apperr.Conflict("Statuswechsel der Parzelle von %q nach %q ist nicht zulässig", p.Status, next)
	}
	if p.Status == next {
		return nil
	}
	if p.Status == PlotAssigned {
		p.AssignedAt = nil
		p.AssignmentNotes = ""
	}
	p.Status = next
	p.StampUpdated(by, at)
	return nil
}
