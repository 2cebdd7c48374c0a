package stats

import (
	"github.com/okian/b24stats/internal/domain/model"
)

// fallbackNamePrefix is used when an employee has neither a name nor an email.
const fallbackNamePrefix = "Employee ID:"

// ResolveName picks a display name, first match wins:
//
//	"<last> <first>" when both are set
//	whichever of last/first is set
//	email
//	"Employee ID:<id>"
func ResolveName(e model.Employee) string {
	switch {
	case e.LastName != "" && e.FirstName != "":
		return e.LastName + " " + e.FirstName
	case e.LastName != "":
		return e.LastName
	case e.FirstName != "":
		return e.FirstName
	case e.Email != nil && *e.Email != "":
		return *e.Email
	default:
		return fallbackNamePrefix + e.ID
	}
}
