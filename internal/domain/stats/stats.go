// Package stats turns fetched CRM collections into per-employee
// statistics. Everything here is pure: no I/O and no state kept between calls.
package stats

import (
	"github.com/okian/b24stats/internal/domain/model"
	"github.com/okian/b24stats/internal/domain/types"
)

// Snapshot holds one period's companies and deals.
type Snapshot struct {
	Companies []model.Company
	Deals     []model.Deal
}

// counts is one employee's figures for a single period.
type counts struct {
	companies    int
	deals        int
	withoutDeals int
}

// index is the joined form of a Snapshot: owner -> owned company ids and
// company -> number of referencing deals.
type index struct {
	ownedBy        map[string][]string
	dealsByCompany map[string]int
}

func newIndex(s Snapshot) index {
	idx := index{
		ownedBy:        make(map[string][]string),
		dealsByCompany: make(map[string]int, len(s.Companies)),
	}
	for _, c := range s.Companies {
		idx.ownedBy[c.OwnerID] = append(idx.ownedBy[c.OwnerID], c.ID)
	}
	for _, d := range s.Deals {
		idx.dealsByCompany[d.CompanyID]++
	}
	return idx
}

// countsFor attributes deals to the employee through company ownership.
// The deal's own OwnerID is not consulted.
func (idx index) countsFor(employeeID string) counts {
	owned := idx.ownedBy[employeeID]
	c := counts{companies: len(owned)}
	// A company listed twice still contributes its deals once.
	seen := make(map[string]struct{}, len(owned))
	for _, companyID := range owned {
		n := idx.dealsByCompany[companyID]
		if n == 0 {
			c.withoutDeals++
		}
		if _, dup := seen[companyID]; dup {
			continue
		}
		seen[companyID] = struct{}{}
		c.deals += n
	}
	return c
}

// Compute builds one EmployeeStats per employee, in input order. previous
// may be nil, in which case every diff is 0.
func Compute(employees []model.Employee, current Snapshot, previous *Snapshot) []types.EmployeeStats {
	out := make([]types.EmployeeStats, 0, len(employees))
	if len(employees) == 0 {
		return out
	}

	cur := newIndex(current)
	var prev *index
	if previous != nil {
		p := newIndex(*previous)
		prev = &p
	}

	for _, e := range employees {
		c := cur.countsFor(e.ID)
		row := types.EmployeeStats{
			UserID:                e.ID,
			UserName:              ResolveName(e),
			CompanyCount:          c.companies,
			DealCount:             c.deals,
			CompaniesWithoutDeals: c.withoutDeals,
		}
		if prev != nil {
			p := prev.countsFor(e.ID)
			row.CompanyCountDiff = c.companies - p.companies
			row.DealCountDiff = c.deals - p.deals
			row.CompaniesWithoutDealsDiff = c.withoutDeals - p.withoutDeals
		}
		out = append(out, row)
	}
	return out
}

// Totals sums every numeric field across rows. It returns nil for an
// empty list.
func Totals(rows []types.EmployeeStats) *types.Totals {
	if len(rows) == 0 {
		return nil
	}
	var t types.Totals
	for _, r := range rows {
		t.Add(r)
	}
	return &t
}
