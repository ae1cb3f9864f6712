package service

import (
	"strings"
	"time"

	"kgv/backend/internal/dto"
	"kgv/backend/internal/model"
	"kgv/backend/pkg/validator"
)

// Assignment date window relative to now.
const (
	assignPastYears  = 1
	assignFutureDays = 30
)

// NewValidator 创建带领域规则的请求校验器
func NewValidator(now func() time.Time) *validator.Validator {
	v := validator.New()
	v.RegisterRule("districtname", "Bezirksname darf höchstens 10 Zeichen lang sein und nur Buchstaben, Ziffern und Bindestriche enthalten",
		func(s string) bool {
			return model.ValidateDistrictName(model.NormalizeDistrictName(s)) == nil
		})
	v.Messages(map[string]string{
		"applicant_exactly_one": "Genau eine von person_id oder application_id muss angegeben werden",
		"reason_with_force":     "Für eine erzwungene Zuweisung ist eine Begründung erforderlich",
		"assignment_window":     "Zuweisungsdatum muss zwischen einem Jahr in der Vergangenheit und 30 Tagen in der Zukunft liegen",
	})
	v.RegisterStructRule(func(s any, report func(field, tag string)) {
		var req dto.AssignPlotRequest
		switch r := s.(type) {
		case dto.AssignPlotRequest:
			req = r
		case *dto.AssignPlotRequest:
			req = *r
		default:
			return
		}
		hasPerson := strings.TrimSpace(req.PersonID) != ""
		hasApp := strings.TrimSpace(req.ApplicationID) != ""
		if hasPerson == hasApp {
			report("person_id", "applicant_exactly_one")
		}
		if req.Force && strings.TrimSpace(req.Reason) == "" {
			report("reason", "reason_with_force")
		}
		if req.AssignmentDate != nil && !withinAssignmentWindow(*req.AssignmentDate, now()) {
			report("assignment_date", "assignment_window")
		}
	}, dto.AssignPlotRequest{})
	return v
}

func withinAssignmentWindow(at, now time.Time) bool {
	lo := now.AddDate(-assignPastYears, 0, 0)
	hi := now.AddDate(0, 0, assignFutureDays)
	return !at.Before(lo) && !at.After(hi)
}
