package model

import "time"

// HistoryKind 申请历史记录类型
type HistoryKind string

const (
	HistoryApplicationReceived HistoryKind = "application_received"
	HistoryConfirmationSent    HistoryKind = "confirmation_sent"
	HistoryOfferMade           HistoryKind = "offer_made"
	HistoryOfferAccepted       HistoryKind = "offer_accepted"
	HistoryOfferRejected       HistoryKind = "offer_rejected"
	HistoryInspection          HistoryKind = "inspection"
	HistoryContractCreated     HistoryKind = "contract_created"
	HistoryCompleted           HistoryKind = "completed"
	HistoryNote                HistoryKind = "note"
)

// AllHistoryKinds lists every entry kind.
func AllHistoryKinds() []HistoryKind {
	return []HistoryKind{
		HistoryApplicationReceived, HistoryConfirmationSent, HistoryOfferMade,
		HistoryOfferAccepted, HistoryOfferRejected, HistoryInspection,
		HistoryContractCreated, HistoryCompleted, HistoryNote,
	}
}

// Valid reports whether k is a known kind.
func (k HistoryKind) Valid() bool {
	for _, known := range AllHistoryKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// HistoryKindForTransition names the entry recorded when an application
// moves from prev to next.
func HistoryKindForTransition(prev, next ApplicationStatus) HistoryKind {
	switch next {
	case ApplicationInProgress:
		return HistoryConfirmationSent
	case ApplicationOfferMade:
		return HistoryOfferMade
	case ApplicationAccepted:
		return HistoryOfferAccepted
	case ApplicationRejected:
		if prev == ApplicationOfferMade {
			return HistoryOfferRejected
		}
	case ApplicationCompleted:
		return HistoryCompleted
	}
	return HistoryNote
}

// HistoryEntry 申请历史（Verlauf）— 对应 application_history，只追加不修改
type HistoryEntry struct {
	ApplicationID string      `gorm:"type:uuid;not null;uniqueIndex:ux_history_application_sequence,priority:1" json:"application_id"`
	Sequence      int         `gorm:"not null;uniqueIndex:ux_history_application_sequence,priority:2"           json:"sequence"`
	Kind          HistoryKind `gorm:"type:varchar(30);not null"                                                json:"kind"`
	OccurredAt    time.Time   `gorm:"not null"                                                                 json:"occurred_at"`
	Gemarkung     string      `gorm:"type:varchar(100)"                                                        json:"gemarkung,omitempty"`
	Flur          string      `gorm:"type:varchar(50)"                                                         json:"flur,omitempty"`
	Parcel        string      `gorm:"type:varchar(50)"                                                         json:"parcel,omitempty"`
	SizeInfo      string      `gorm:"type:varchar(50)"                                                         json:"size_info,omitempty"`
	CaseWorker    string      `gorm:"type:varchar(100)"                                                        json:"case_worker,omitempty"`
	Note          string      `gorm:"type:text"                                                                json:"note,omitempty"`
	Comment       string      `gorm:"type:text"                                                                json:"comment,omitempty"`
	BaseModel
}

// TableName 指定表名
func (HistoryEntry) TableName() string { return "application_history" }

// NewHistoryEntry builds an entry; the sequence is assigned on append.
func NewHistoryEntry(applicationID string, kind HistoryKind, at time.Time) *HistoryEntry {
	e := &HistoryEntry{ApplicationID: applicationID, Kind: kind, OccurredAt: at}
	e.EnsureID()
	return e
}

// WithPlotLocation copies the descriptive location of a plot.
func (e *HistoryEntry) WithPlotLocation(p *Plot) *HistoryEntry {
	e.Gemarkung = p.Gemarkung
	e.Flur = p.Flur
	e.Parcel = p.Number
	if p.Area > 0 {
		e.SizeInfo = formatArea(p.Area)
	}
	return e
}
