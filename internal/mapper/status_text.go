package mapper

import "kgv/backend/internal/model"

// Fixed enum → operator text tables. Every enum value must have an entry;
// the mapper tests iterate the model's enum lists against these tables.

var districtStatusText = map[model.DistrictStatus]string{
	model.DistrictActive:   "Aktiv",
	model.DistrictInactive: "Inaktiv",
	model.DistrictArchived: "Archiviert",
}

var plotStatusText = map[model.PlotStatus]string{
	model.PlotAvailable:        "Frei",
	model.PlotReserved:         "Reserviert",
	model.PlotAssigned:         "Vergeben",
	model.PlotUnavailable:      "Nicht verfügbar",
	model.PlotUnderDevelopment: "In Erschließung",
	model.PlotDecommissioned:   "Aufgelassen",
	model.PlotPendingApproval:  "Genehmigung ausstehend",
}

var applicationStatusText = map[model.ApplicationStatus]string{
	model.ApplicationReceived:    "Eingegangen",
	model.ApplicationInProgress:  "In Bearbeitung",
	model.ApplicationQueued:      "Auf Warteliste",
	model.ApplicationOfferMade:   "Angebot unterbreitet",
	model.ApplicationAccepted:    "Angebot angenommen",
	model.ApplicationRejected:    "Abgelehnt",
	model.ApplicationCompleted:   "Abgeschlossen",
	model.ApplicationCancelled:   "Storniert",
	model.ApplicationDeactivated: "Deaktiviert",
}

var historyKindText = map[model.HistoryKind]string{
	model.HistoryApplicationReceived: "Antrag eingegangen",
	model.HistoryConfirmationSent:    "Eingangsbestätigung versandt",
	model.HistoryOfferMade:           "Angebot unterbreitet",
	model.HistoryOfferAccepted:       "Angebot angenommen",
	model.HistoryOfferRejected:       "Angebot abgelehnt",
	model.HistoryInspection:          "Besichtigung",
	model.HistoryContractCreated:     "Pachtvertrag erstellt",
	model.HistoryCompleted:           "Abgeschlossen",
	model.HistoryNote:                "Notiz",
}

var salutationText = map[model.Salutation]string{
	model.SalutationNone:   "",
	model.SalutationHerr:   "Herr",
	model.SalutationFrau:   "Frau",
	model.SalutationDivers: "Divers",
	model.SalutationFamily: "Familie",
}

// lookup falls back to the raw symbolic value for unmapped entries.
func lookup[K ~string](table map[K]string, k K) string {
	if text, ok := table[k]; ok {
		return text
	}
	return string(k)
}

// DistrictStatusText 区状态描述
func DistrictStatusText(s model.DistrictStatus) string { return lookup(districtStatusText, s) }

// PlotStatusText 地块状态描述
func PlotStatusText(s model.PlotStatus) string { return lookup(plotStatusText, s) }

// ApplicationStatusText 申请状态描述
func ApplicationStatusText(s model.ApplicationStatus) string {
	return lookup(applicationStatusText, s)
}

// HistoryKindText 历史记录类型描述
func HistoryKindText(k model.HistoryKind) string { return lookup(historyKindText, k) }

// SalutationText 称谓描述
func SalutationText(s model.Salutation) string { return lookup(salutationText, s) }
