// Package model contains domain models passed between layers.
package model

// Employee is a CRM user. Only ID and the name fields take part in
// aggregation; the rest is carried for display.
type Employee struct {
	ID          string
	FirstName   string
	LastName    string
	MiddleName  *string
	Email       *string
	Photo       *string
	Departments []int
}

// Company is a CRM company owned by one employee.
type Company struct {
	ID      string
	Title   string
	OwnerID string // employee id (ASSIGNED_BY_ID)
}

// Deal is a CRM deal attached to a company.
type Deal struct {
	ID        string
	Title     string
	CompanyID string
	// OwnerID is fetched but deals are attributed to employees through
	// company ownership, not through this field.
	OwnerID string
}
