// Package mapper converts entities to outward projections and back. All
// functions are pure.
package mapper

import (
	"gorm.io/gorm"

	"kgv/backend/internal/dto"
	"kgv/backend/internal/model"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ── District ──

// ToDistrictResponse 实体 → 响应
func ToDistrictResponse(d *model.District) dto.DistrictResponse {
	return dto.DistrictResponse{
		ID:          d.ID,
		Name:        d.Name,
		DisplayName: d.DisplayName,
		Label:       d.Label(),
		Description: d.Description,
		SortOrder:   d.SortOrder,
		TotalArea:   d.TotalArea,
		Status:      string(d.Status),
		StatusText:  DistrictStatusText(d.Status),
		PlotCount:   d.PlotCount,
		CreatedAt:   d.CreatedAt,
		CreatedBy:   deref(d.CreatedBy),
		UpdatedAt:   d.UpdatedAt,
		UpdatedBy:   deref(d.UpdatedBy),
	}
}

// FromDistrictResponse 响应 → 实体（标识、状态与标量字段）
func FromDistrictResponse(r dto.DistrictResponse) *model.District {
	d := &model.District{
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		SortOrder:   r.SortOrder,
		TotalArea:   r.TotalArea,
		Status:      model.DistrictStatus(r.Status),
		PlotCount:   r.PlotCount,
	}
	d.ID = r.ID
	d.CreatedAt, d.CreatedBy = r.CreatedAt, optional(r.CreatedBy)
	d.UpdatedAt, d.UpdatedBy = r.UpdatedAt, optional(r.UpdatedBy)
	return d
}

// ── Plot ──

// ToPlotResponse 实体 → 响应；已预加载的区名一并展开
func ToPlotResponse(p *model.Plot) dto.PlotResponse {
	r := dto.PlotResponse{
		ID:              p.ID,
		Number:          p.Number,
		DistrictID:      p.DistrictID,
		Area:            p.Area,
		Price:           p.Price,
		HasWater:        p.HasWater,
		HasElectricity:  p.HasElectricity,
		Priority:        p.Priority,
		Status:          string(p.Status),
		StatusText:      PlotStatusText(p.Status),
		Description:     p.Description,
		Gemarkung:       p.Gemarkung,
		Flur:            p.Flur,
		AssignedAt:      p.AssignedAt,
		AssignmentNotes: p.AssignmentNotes,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		UpdatedBy:       deref(p.UpdatedBy),
	}
	if p.District != nil {
		r.DistrictName = p.District.Label()
	}
	return r
}

// FromPlotResponse 响应 → 实体
func FromPlotResponse(r dto.PlotResponse) *model.Plot {
	p := &model.Plot{
		Number:          r.Number,
		NumberKey:       model.PlotNumberKey(r.Number),
		DistrictID:      r.DistrictID,
		Area:            r.Area,
		Price:           r.Price,
		HasWater:        r.HasWater,
		HasElectricity:  r.HasElectricity,
		Priority:        r.Priority,
		Status:          model.PlotStatus(r.Status),
		Description:     r.Description,
		Gemarkung:       r.Gemarkung,
		Flur:            r.Flur,
		AssignedAt:      r.AssignedAt,
		AssignmentNotes: r.AssignmentNotes,
	}
	p.ID = r.ID
	p.CreatedAt = r.CreatedAt
	p.UpdatedAt, p.UpdatedBy = r.UpdatedAt, optional(r.UpdatedBy)
	return p
}

// ── Application ──

// ToApplicationResponse 实体 → 响应，值对象展开为标量字段
func ToApplicationResponse(a *model.Application) dto.ApplicationResponse {
	letter := a.LetterSalutation
	if letter == "" {
		letter = a.Applicant.LetterSalutation()
	}
	return dto.ApplicationResponse{
		ID:                  a.ID,
		PersonID:            a.PersonID,
		DistrictID:          a.DistrictID,
		FileReference:       a.FileReference,
		EntryNumber:         a.EntryNumber,
		WaitingListNumber32: a.WaitingListNumber32,
		WaitingListNumber33: a.WaitingListNumber33,
		Salutation:          string(a.Applicant.Salutation),
		SalutationText:      SalutationText(a.Applicant.Salutation),
		Title:               a.Applicant.Title,
		FirstName:           a.Applicant.FirstName,
		LastName:            a.Applicant.LastName,
		BirthDate:           a.Applicant.BirthDate,
		FullName:            a.Applicant.FullName(),
		CoSalutation:        string(a.CoApplicant.Salutation),
		CoSalutationText:    SalutationText(a.CoApplicant.Salutation),
		CoTitle:             a.CoApplicant.Title,
		CoFirstName:         a.CoApplicant.FirstName,
		CoLastName:          a.CoApplicant.LastName,
		CoBirthDate:         a.CoApplicant.BirthDate,
		DisplayName:         a.DisplayName(),
		LetterSalutation:    letter,
		Street:              a.Address.Street,
		PostalCode:          a.Address.PostalCode,
		City:                a.Address.City,
		AddressLine:         a.Address.Line(),
		Phone:               string(a.Contact.Phone),
		MobilePhone:         string(a.Contact.MobilePhone),
		MobilePhone2:        string(a.Contact.MobilePhone2),
		BusinessPhone:       string(a.Contact.BusinessPhone),
		Email:               string(a.Contact.Email),
		ApplicationDate:     a.ApplicationDate,
		ConfirmationDate:    a.ConfirmationDate,
		CurrentOfferDate:    a.CurrentOfferDate,
		DeactivatedAt:       a.DeactivatedAt,
		Preferences:         a.Preferences,
		Remarks:             a.Remarks,
		Status:              string(a.Status),
		StatusText:          ApplicationStatusText(a.Status),
		AssignedPlotID:      deref(a.AssignedPlotID),
		Deleted:             a.IsDeleted(),
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

// FromApplicationResponse 响应 → 实体。LetterSalutation 仅在与默认称谓不同时保留。
func FromApplicationResponse(r dto.ApplicationResponse) *model.Application {
	a := &model.Application{
		PersonID:            r.PersonID,
		DistrictID:          r.DistrictID,
		FileReference:       r.FileReference,
		EntryNumber:         r.EntryNumber,
		WaitingListNumber32: r.WaitingListNumber32,
		WaitingListNumber33: r.WaitingListNumber33,
		Applicant: model.PersonName{
			Salutation: model.Salutation(r.Salutation),
			Title:      r.Title,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			BirthDate:  r.BirthDate,
		},
		CoApplicant: model.PersonName{
			Salutation: model.Salutation(r.CoSalutation),
			Title:      r.CoTitle,
			FirstName:  r.CoFirstName,
			LastName:   r.CoLastName,
			BirthDate:  r.CoBirthDate,
		},
		Address: model.Address{Street: r.Street, PostalCode: r.PostalCode, City: r.City},
		Contact: model.Contact{
			Phone:         model.PhoneNumber(r.Phone),
			MobilePhone:   model.PhoneNumber(r.MobilePhone),
			MobilePhone2:  model.PhoneNumber(r.MobilePhone2),
			BusinessPhone: model.PhoneNumber(r.BusinessPhone),
			Email:         model.Email(r.Email),
		},
		ApplicationDate:  r.ApplicationDate,
		ConfirmationDate: r.ConfirmationDate,
		CurrentOfferDate: r.CurrentOfferDate,
		DeactivatedAt:    r.DeactivatedAt,
		Preferences:      r.Preferences,
		Remarks:          r.Remarks,
		Status:           model.ApplicationStatus(r.Status),
		AssignedPlotID:   optional(r.AssignedPlotID),
	}
	if r.LetterSalutation != a.Applicant.LetterSalutation() {
		a.LetterSalutation = r.LetterSalutation
	}
	a.ID = r.ID
	a.CreatedAt, a.UpdatedAt = r.CreatedAt, r.UpdatedAt
	if r.Deleted {
		a.DeletedAt = gorm.DeletedAt{Time: r.UpdatedAt, Valid: true}
	}
	return a
}

// ── History ──

// ToHistoryEntryResponse 历史记录 → 响应
func ToHistoryEntryResponse(e *model.HistoryEntry) dto.HistoryEntryResponse {
	return dto.HistoryEntryResponse{
		ID:            e.ID,
		ApplicationID: e.ApplicationID,
		Sequence:      e.Sequence,
		Kind:          string(e.Kind),
		KindText:      HistoryKindText(e.Kind),
		OccurredAt:    e.OccurredAt,
		Gemarkung:     e.Gemarkung,
		Flur:          e.Flur,
		Parcel:        e.Parcel,
		SizeInfo:      e.SizeInfo,
		CaseWorker:    e.CaseWorker,
		Note:          e.Note,
		Comment:       e.Comment,
		CreatedBy:     deref(e.CreatedBy),
		CreatedAt:     e.CreatedAt,
	}
}

// ToWaitingListEntry 等候名单条目（位置从 1 开始）
func ToWaitingListEntry(position int, a *model.Application) dto.WaitingListEntry {
	return dto.WaitingListEntry{
		Position:        position,
		ApplicationID:   a.ID,
		EntryNumber:     a.EntryNumber,
		FileReference:   a.FileReference,
		Name:            a.DisplayName(),
		AddressLine:     a.Address.Line(),
		ApplicationDate: a.ApplicationDate,
		Preferences:     a.Preferences,
	}
}

// ToPersonName builds the value object from request input.
func ToPersonName(in dto.PersonNameInput) (model.PersonName, error) {
	sal, err := model.ParseSalutation(in.Salutation)
	if err != nil {
		return model.PersonName{}, err
	}
	return model.NewPersonName(sal, in.Title, in.FirstName, in.LastName, in.BirthDate)
}
