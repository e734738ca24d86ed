package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/BKHilton/Ember/pkg/domain"
)

// ChurchCampusRule blocks commits that leave a touched church without a
// campus or with a primary campus it does not own.
func ChurchCampusRule() domain.Rule {
	return churchCampusRule{}
}

type churchCampusRule struct{}

const churchCampusRuleName = "church_campus_integrity"

func (churchCampusRule) Name() string { return churchCampusRuleName }

func (churchCampusRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, change := range changes {
		switch v := change.After.(type) {
		case domain.Church:
			touched[v.ID] = struct{}{}
		case domain.Campus:
			touched[v.ChurchID] = struct{}{}
		}
	}

	res := domain.Result{}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		church, ok := view.FindChurch(id)
		if !ok {
			continue
		}
		var msg string
		switch {
		case len(church.CampusIDs) == 0:
			msg = fmt.Sprintf("church %s has no campus", id)
		case !slices.Contains(church.CampusIDs, church.PrimaryCampusID):
			msg = fmt.Sprintf("church %s primary campus %q is not one of its campuses", id, church.PrimaryCampusID)
		default:
			for _, campusID := range church.CampusIDs {
				campus, ok := view.FindCampus(campusID)
				if !ok || campus.ChurchID != id {
					msg = fmt.Sprintf("church %s lists campus %s it does not own", id, campusID)
					break
				}
			}
		}
		if msg != "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     churchCampusRuleName,
				Severity: domain.SeverityBlock,
				Message:  msg,
				Entity:   domain.EntityChurch,
				EntityID: id,
			})
		}
	}
	return res, nil
}
