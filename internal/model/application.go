package model

import (
	"time"

	apperr "kgv/backend/pkg/errors"
)

// ApplicationStatus 申请（Antrag）状态
type ApplicationStatus string

const (
	ApplicationReceived    ApplicationStatus = "received"
	ApplicationInProgress  ApplicationStatus = "in_progress"
	ApplicationQueued      ApplicationStatus = "queued"
	ApplicationOfferMade   ApplicationStatus = "offer_made"
	ApplicationAccepted    ApplicationStatus = "accepted"
	ApplicationRejected    ApplicationStatus = "rejected"
	ApplicationCompleted   ApplicationStatus = "completed"
	ApplicationCancelled   ApplicationStatus = "cancelled"
	ApplicationDeactivated ApplicationStatus = "deactivated"
)

// AllApplicationStatuses lists every application status in lifecycle order.
func AllApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		ApplicationReceived, ApplicationInProgress, ApplicationQueued,
		ApplicationOfferMade, ApplicationAccepted, ApplicationRejected,
		ApplicationCompleted, ApplicationCancelled, ApplicationDeactivated,
	}
}

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationReceived:    {ApplicationInProgress, ApplicationQueued, ApplicationRejected, ApplicationCancelled, ApplicationDeactivated},
	ApplicationInProgress:  {ApplicationQueued, ApplicationRejected, ApplicationCancelled, ApplicationDeactivated},
	ApplicationQueued:      {ApplicationOfferMade, ApplicationCancelled, ApplicationDeactivated},
	ApplicationOfferMade:   {ApplicationAccepted, ApplicationRejected, ApplicationQueued, ApplicationCancelled},
	ApplicationAccepted:    {ApplicationCompleted, ApplicationCancelled},
	ApplicationRejected:    {},
	ApplicationCompleted:   {},
	ApplicationCancelled:   {},
	ApplicationDeactivated: {ApplicationQueued},
}

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	_, ok := applicationTransitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle allows s → next.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range applicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsClosed 已结束的申请不再参与分配
func (s ApplicationStatus) IsClosed() bool {
	switch s {
	case ApplicationRejected, ApplicationCompleted, ApplicationCancelled, ApplicationDeactivated:
		return true
	}
	return false
}

var ErrApplicationStatusBad = apperr.Validation("Unbekannter Antragsstatus")

// Application 申请 — 对应 applications
type Application struct {
	PersonID            string            `gorm:"type:uuid;not null;index"                            json:"person_id"`
	DistrictID          string            `gorm:"type:uuid;not null;index"                            json:"district_id"`
	FileReference       string            `gorm:"type:varchar(30);index"                              json:"file_reference,omitempty"`
	EntryNumber         string            `gorm:"type:varchar(30);index"                              json:"entry_number,omitempty"`
	WaitingListNumber32 string            `gorm:"column:waiting_list_number_32;type:varchar(20)"      json:"waiting_list_number_32,omitempty"`
	WaitingListNumber33 string            `gorm:"column:waiting_list_number_33;type:varchar(20)"      json:"waiting_list_number_33,omitempty"`
	Applicant           PersonName        `gorm:"embedded;embeddedPrefix:applicant_"                  json:"applicant"`
	CoApplicant         PersonName        `gorm:"embedded;embeddedPrefix:co_applicant_"               json:"co_applicant"`
	LetterSalutation    string            `gorm:"type:varchar(200)"                                   json:"letter_salutation,omitempty"`
	Address             Address           `gorm:"embedded;embeddedPrefix:address_"                    json:"address"`
	Contact             Contact           `gorm:"embedded"                                            json:"contact"`
	ApplicationDate     time.Time         `gorm:"not null;index"                                      json:"application_date"`
	ConfirmationDate    *time.Time        `json:"confirmation_date,omitempty"`
	CurrentOfferDate    *time.Time        `json:"current_offer_date,omitempty"`
	DeactivatedAt       *time.Time        `json:"deactivated_at,omitempty"`
	Preferences         string            `gorm:"type:text"                                           json:"preferences,omitempty"`
	Remarks             string            `gorm:"type:text"                                           json:"remarks,omitempty"`
	Status              ApplicationStatus `gorm:"type:varchar(20);not null;default:'received';index"  json:"status"`
	AssignedPlotID      *string           `gorm:"type:uuid;index"                                     json:"assigned_plot_id,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Application) TableName() string { return "applications" }

// DisplayName renders applicant and, when present, co-applicant.
func (a *Application) DisplayName() string {
	name := a.Applicant.FullName()
	if !a.CoApplicant.IsZero() {
		name += " / " + a.CoApplicant.FullName()
	}
	return name
}

// TransitionTo applies a guarded lifecycle change and maintains the
// lifecycle dates.
func (a *Application) TransitionTo(next ApplicationStatus, by string, at time.Time) error {
	if !next.Valid() {
		return ErrApplicationStatusBad
	}
	if !a.Status.CanTransitionTo(next) {
		return apperr.Conflict("Statuswechsel des Antrags von %q nach %q ist nicht zulässig", a.Status, next)
	}
	if a.Status == next {
		return nil
	}
	prev := a.Status
	a.Status = next
	switch next {
	case ApplicationInProgress, ApplicationQueued:
		if a.ConfirmationDate == nil {
			a.ConfirmationDate = &at
		}
		if prev == ApplicationDeactivated {
			a.DeactivatedAt = nil
		}
	case ApplicationOfferMade:
		a.CurrentOfferDate = &at
	case ApplicationDeactivated:
		a.DeactivatedAt = &at
	}
	a.StampUpdated(by, at)
	return nil
}

// AssignPlot sets the assigned-plot reference.
func (a *Application) AssignPlot(plotID, by string, at time.Time) {
	a.AssignedPlotID = &plotID
	a.StampUpdated(by, at)
}

// ClearPlot removes the assigned-plot reference.
func (a *Application) ClearPlot(by string, at time.Time) {
	a.AssignedPlotID = nil
	a.StampUpdated(by, at)
}
