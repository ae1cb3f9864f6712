package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgv/backend/internal/model"
)

// ── Exhaustive status tables ──

func TestStatusTables_CoverEveryValue(t *testing.T) {
	for _, s := range model.AllDistrictStatuses() {
		assert.Contains(t, districtStatusText, s)
		assert.NotEqual(t, string(s), DistrictStatusText(s), "district status %s has no text", s)
	}
	for _, s := range model.AllPlotStatuses() {
		assert.Contains(t, plotStatusText, s)
		assert.NotEqual(t, string(s), PlotStatusText(s), "plot status %s has no text", s)
	}
	for _, s := range model.AllApplicationStatuses() {
		assert.Contains(t, applicationStatusText, s)
		assert.NotEqual(t, string(s), ApplicationStatusText(s), "application status %s has no text", s)
	}
	for _, k := range model.AllHistoryKinds() {
		assert.Contains(t, historyKindText, k)
		assert.NotEqual(t, string(k), HistoryKindText(k), "history kind %s has no text", k)
	}
	for _, s := range model.AllSalutations() {
		assert.Contains(t, salutationText, s)
	}

	assert.Len(t, districtStatusText, len(model.AllDistrictStatuses()))
	assert.Len(t, plotStatusText, len(model.AllPlotStatuses()))
	assert.Len(t, applicationStatusText, len(model.AllApplicationStatuses()))
	assert.Len(t, historyKindText, len(model.AllHistoryKinds()))
}

func TestStatusText_FallsBackToRawValue(t *testing.T) {
	assert.Equal(t, "frozen", DistrictStatusText("frozen"))
	assert.Equal(t, "flooded", PlotStatusText("flooded"))
	assert.Equal(t, "lost", ApplicationStatusText("lost"))
	assert.Equal(t, "phone_call", HistoryKindText("phone_call"))
}

// ── Round trips ──

var stamp = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func TestDistrict_RoundTrip(t *testing.T) {
	d, err := model.NewDistrict("Süd")
	require.NoError(t, err)
	d.DisplayName, d.Description = "Südvorstadt", "Am Fluss"
	d.SortOrder, d.TotalArea, d.PlotCount = 3, 500, 12
	require.NoError(t, d.TransitionTo(model.DistrictInactive, "u1", stamp))
	d.StampCreated("admin", stamp.Add(-time.Hour))
	d.StampUpdated("u1", stamp)

	r := ToDistrictResponse(d)
	assert.Equal(t, "Inaktiv", r.StatusText)
	assert.Equal(t, "Südvorstadt", r.Label)

	back := FromDistrictResponse(r)
	assert.Equal(t, d, back)
}

func TestPlot_RoundTrip(t *testing.T) {
	p, err := model.NewPlot("district-1", "A-17")
	require.NoError(t, err)
	price := 120.5
	p.Price, p.Area, p.Priority = &price, 312, 4
	p.HasWater, p.Gemarkung, p.Flur = true, "Lindenau", "3"
	require.NoError(t, p.Assign(model.AssignOptions{At: stamp, Notes: "Vertrag folgt", By: "u1"}))
	p.CreatedAt = stamp.Add(-time.Hour)

	r := ToPlotResponse(p)
	assert.Equal(t, "Vergeben", r.StatusText)
	assert.Empty(t, r.DistrictName)

	back := FromPlotResponse(r)
	assert.Equal(t, p, back)

	p.District = &model.District{Name: "M", DisplayName: "Mitte"}
	assert.Equal(t, "Mitte", ToPlotResponse(p).DistrictName)
}

func TestApplication_RoundTrip(t *testing.T) {
	birth := time.Date(1980, 7, 1, 0, 0, 0, 0, time.UTC)
	applicant, err := model.NewPersonName(model.SalutationFrau, "Dr.", "Erika", "Mustermann", &birth)
	require.NoError(t, err)
	addr, err := model.NewAddress("Gartenweg 1", "04109", "Leipzig")
	require.NoError(t, err)
	contact, err := model.NewContact("0341 1234", "", "", "", "erika@example.de")
	require.NoError(t, err)

	plotID := "plot-1"
	a := &model.Application{
		PersonID:        "person-1",
		DistrictID:      "district-1",
		FileReference:   "M/0001/2024",
		EntryNumber:     "M-2024-00001",
		Applicant:       applicant,
		Address:         addr,
		Contact:         contact,
		ApplicationDate: stamp,
		Preferences:     "mit Laube",
		Status:          model.ApplicationQueued,
		AssignedPlotID:  &plotID,
	}
	a.ID = "app-1"
	a.CreatedAt, a.UpdatedAt = stamp, stamp

	r := ToApplicationResponse(a)
	assert.Equal(t, "Dr. Erika Mustermann", r.FullName)
	assert.Equal(t, "Sehr geehrte Frau Dr. Mustermann", r.LetterSalutation)
	assert.Equal(t, "Gartenweg 1, 04109 Leipzig", r.AddressLine)
	assert.Equal(t, "Auf Warteliste", r.StatusText)
	assert.Equal(t, "frau", r.Salutation)
	assert.Equal(t, "Frau", r.SalutationText)
	assert.Empty(t, r.CoSalutationText, "ohne Mitantragsteller")

	back := FromApplicationResponse(r)
	assert.Equal(t, a.ID, back.ID)
	assert.Equal(t, a.PersonID, back.PersonID)
	assert.Equal(t, a.DistrictID, back.DistrictID)
	assert.Equal(t, a.Status, back.Status)
	assert.Equal(t, a.FileReference, back.FileReference)
	assert.Equal(t, a.EntryNumber, back.EntryNumber)
	assert.Equal(t, a.AssignedPlotID, back.AssignedPlotID)
	assert.True(t, a.Applicant.Equal(back.Applicant))
	assert.Equal(t, a.Address, back.Address)
	assert.Equal(t, a.Contact, back.Contact)
	assert.Empty(t, back.LetterSalutation, "derived salutation is not stored")
	assert.Equal(t, a, back)
}

func TestHistoryAndWaitingList(t *testing.T) {
	e := model.NewHistoryEntry("app-1", model.HistoryContractCreated, stamp)
	e.Sequence = 3
	r := ToHistoryEntryResponse(e)
	assert.Equal(t, "Pachtvertrag erstellt", r.KindText)
	assert.Equal(t, 3, r.Sequence)

	a := &model.Application{ApplicationDate: stamp, Applicant: model.PersonName{FirstName: "Max", LastName: "Muster"}}
	w := ToWaitingListEntry(2, a)
	assert.Equal(t, 2, w.Position)
	assert.Equal(t, "Max Muster", w.Name)
}
