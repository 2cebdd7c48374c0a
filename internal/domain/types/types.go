// Package types contains the read shapes shared by the service, the HTTP
// API and the CLI.
package types

import (
	"time"

	"github.com/okian/b24stats/internal/domain/model"
)

// EmployeeStats is one employee's row in a statistics report. Diff fields
// are current minus previous period values, 0 without a comparison period.
type EmployeeStats struct {
	UserID                    string `json:"userId"`
	UserName                  string `json:"userName"`
	CompanyCount              int    `json:"companyCount"`
	DealCount                 int    `json:"dealCount"`
	CompaniesWithoutDeals     int    `json:"companiesWithoutDeals"`
	CompanyCountDiff          int    `json:"companyCountDiff"`
	DealCountDiff             int    `json:"dealCountDiff"`
	CompaniesWithoutDealsDiff int    `json:"companiesWithoutDealsDiff"`
}

// Totals is the field-wise sum of a report's EmployeeStats.
type Totals struct {
	CompanyCount              int `json:"companyCount"`
	DealCount                 int `json:"dealCount"`
	CompaniesWithoutDeals     int `json:"companiesWithoutDeals"`
	CompanyCountDiff          int `json:"companyCountDiff"`
	DealCountDiff             int `json:"dealCountDiff"`
	CompaniesWithoutDealsDiff int `json:"companiesWithoutDealsDiff"`
}

// Add accumulates s into t.
func (t *Totals) Add(s EmployeeStats) {
	t.CompanyCount += s.CompanyCount
	t.DealCount += s.DealCount
	t.CompaniesWithoutDeals += s.CompaniesWithoutDeals
	t.CompanyCountDiff += s.CompanyCountDiff
	t.DealCountDiff += s.DealCountDiff
	t.CompaniesWithoutDealsDiff += s.CompaniesWithoutDealsDiff
}

// Warning codes attached to a report. Warnings never fail a computation.
const (
	WarningEmptyEmployees = "empty_employee_list"
)

// Report is the result of one statistics computation.
type Report struct {
	RequestID   string          `json:"requestId"`
	Current     model.Period    `json:"current"`
	Previous    *model.Period   `json:"previous,omitempty"`
	Employees   []EmployeeStats `json:"employees"`
	Totals      *Totals         `json:"totals"`
	Warnings    []string        `json:"warnings,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// EmployeeView is an employee as listed by the API and the CLI check command.
type EmployeeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Departments []int  `json:"departments,omitempty"`
}
