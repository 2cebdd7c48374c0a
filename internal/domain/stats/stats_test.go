package stats_test

import (
	"strings"
	"testing"

	"github.com/okian/b24stats/internal/domain/model"
	"github.com/okian/b24stats/internal/domain/stats"
	"github.com/okian/b24stats/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func strPtr(s string) *string { return &s }

func TestCompute_Scenarios(t *testing.T) {
	Convey("Given one employee owning one company", t, func() {
		employees := []model.Employee{{ID: "1"}}
		companies := []model.Company{{ID: "c1", OwnerID: "1"}}

		Convey("When there are no deals", func() {
			rows := stats.Compute(employees, stats.Snapshot{Companies: companies}, nil)

			Convey("Then the company should count as without deals", func() {
				So(rows, ShouldHaveLength, 1)
				So(rows[0].CompanyCount, ShouldEqual, 1)
				So(rows[0].DealCount, ShouldEqual, 0)
				So(rows[0].CompaniesWithoutDeals, ShouldEqual, 1)
			})
		})

		Convey("When one deal references the company", func() {
			deals := []model.Deal{{ID: "d1", CompanyID: "c1"}}
			rows := stats.Compute(employees, stats.Snapshot{Companies: companies, Deals: deals}, nil)

			Convey("Then the deal should be attributed to the owner", func() {
				So(rows[0].CompanyCount, ShouldEqual, 1)
				So(rows[0].DealCount, ShouldEqual, 1)
				So(rows[0].CompaniesWithoutDeals, ShouldEqual, 0)
			})
		})
	})
}

func TestCompute_Attribution(t *testing.T) {
	Convey("Given deals whose own owner differs from the company owner", t, func() {
		employees := []model.Employee{{ID: "1"}, {ID: "2"}}
		current := stats.Snapshot{
			Companies: []model.Company{{ID: "c1", OwnerID: "1"}},
			Deals: []model.Deal{
				{ID: "d1", CompanyID: "c1", OwnerID: "2"},
				{ID: "d2", CompanyID: "c-unknown", OwnerID: "2"},
			},
		}

		rows := stats.Compute(employees, current, nil)

		Convey("Then deals follow company ownership, not the deal owner", func() {
			So(rows[0].DealCount, ShouldEqual, 1)
			So(rows[1].DealCount, ShouldEqual, 0)
			So(rows[1].CompanyCount, ShouldEqual, 0)
		})
	})

	Convey("Given an employee with several companies and deals", t, func() {
		employees := []model.Employee{{ID: "7"}}
		current := stats.Snapshot{
			Companies: []model.Company{
				{ID: "a", OwnerID: "7"},
				{ID: "b", OwnerID: "7"},
				{ID: "c", OwnerID: "7"},
				{ID: "z", OwnerID: "8"},
			},
			Deals: []model.Deal{
				{ID: "d1", CompanyID: "a"},
				{ID: "d2", CompanyID: "a"},
				{ID: "d3", CompanyID: "b"},
				{ID: "d4", CompanyID: "z"},
			},
		}

		rows := stats.Compute(employees, current, nil)

		Convey("Then dealCount should equal the per-company deal sum", func() {
			So(rows[0].CompanyCount, ShouldEqual, 3)
			So(rows[0].DealCount, ShouldEqual, 3)
			So(rows[0].CompaniesWithoutDeals, ShouldEqual, 1)
			So(rows[0].CompaniesWithoutDeals, ShouldBeLessThanOrEqualTo, rows[0].CompanyCount)
		})
	})

	Convey("Given the same company listed twice", t, func() {
		employees := []model.Employee{{ID: "1"}}
		current := stats.Snapshot{
			Companies: []model.Company{{ID: "c1", OwnerID: "1"}, {ID: "c1", OwnerID: "1"}},
			Deals:     []model.Deal{{ID: "d1", CompanyID: "c1"}},
		}

		rows := stats.Compute(employees, current, nil)

		Convey("Then its deals should be counted once", func() {
			So(rows[0].CompanyCount, ShouldEqual, 2)
			So(rows[0].DealCount, ShouldEqual, 1)
		})
	})
}

func TestCompute_Edges(t *testing.T) {
	Convey("Given no employees", t, func() {
		rows := stats.Compute(nil, stats.Snapshot{
			Companies: []model.Company{{ID: "c1", OwnerID: "1"}},
		}, &stats.Snapshot{})

		Convey("Then the result should be empty, not nil", func() {
			So(rows, ShouldNotBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("And totals should be absent", func() {
			So(stats.Totals(rows), ShouldBeNil)
		})
	})

	Convey("Given employees without companies", t, func() {
		employees := []model.Employee{{ID: "1"}, {ID: "2"}}
		rows := stats.Compute(employees, stats.Snapshot{
			Deals: []model.Deal{{ID: "d1", CompanyID: "c1"}},
		}, nil)

		Convey("Then every count should be zero", func() {
			for _, r := range rows {
				So(r.CompanyCount, ShouldEqual, 0)
				So(r.DealCount, ShouldEqual, 0)
				So(r.CompaniesWithoutDeals, ShouldEqual, 0)
			}
		})
	})

	Convey("Given employees in a particular order", t, func() {
		employees := []model.Employee{{ID: "3"}, {ID: "1"}, {ID: "2"}}
		rows := stats.Compute(employees, stats.Snapshot{}, nil)

		Convey("Then the output should keep that order", func() {
			So(rows[0].UserID, ShouldEqual, "3")
			So(rows[1].UserID, ShouldEqual, "1")
			So(rows[2].UserID, ShouldEqual, "2")
		})
	})
}

func TestCompute_Diffs(t *testing.T) {
	employees := []model.Employee{{ID: "1", FirstName: "Petr", LastName: "Ivanov"}}
	current := stats.Snapshot{
		Companies: []model.Company{{ID: "c1", OwnerID: "1"}, {ID: "c2", OwnerID: "1"}},
		Deals:     []model.Deal{{ID: "d1", CompanyID: "c1"}},
	}

	Convey("Given no previous period", t, func() {
		rows := stats.Compute(employees, current, nil)

		Convey("Then every diff should be zero", func() {
			So(rows[0].CompanyCountDiff, ShouldEqual, 0)
			So(rows[0].DealCountDiff, ShouldEqual, 0)
			So(rows[0].CompaniesWithoutDealsDiff, ShouldEqual, 0)
		})
	})

	Convey("Given a previous period", t, func() {
		previous := &stats.Snapshot{
			Companies: []model.Company{{ID: "p1", OwnerID: "1"}, {ID: "p2", OwnerID: "1"}, {ID: "p3", OwnerID: "1"}},
			Deals:     []model.Deal{{ID: "pd1", CompanyID: "p1"}, {ID: "pd2", CompanyID: "p2"}, {ID: "pd3", CompanyID: "p2"}},
		}
		rows := stats.Compute(employees, current, previous)

		Convey("Then diffs should be current minus previous", func() {
			So(rows[0].CompanyCount, ShouldEqual, 2)
			So(rows[0].CompanyCountDiff, ShouldEqual, 2-3)
			So(rows[0].DealCountDiff, ShouldEqual, 1-3)
			So(rows[0].CompaniesWithoutDealsDiff, ShouldEqual, 1-1)
		})
	})

	Convey("Given an empty previous period", t, func() {
		rows := stats.Compute(employees, current, &stats.Snapshot{})

		Convey("Then diffs should equal current values", func() {
			So(rows[0].CompanyCountDiff, ShouldEqual, 2)
			So(rows[0].DealCountDiff, ShouldEqual, 1)
			So(rows[0].CompaniesWithoutDealsDiff, ShouldEqual, 1)
		})
	})
}

func TestTotals(t *testing.T) {
	Convey("Given two employees with 1 and 2 companies", t, func() {
		rows := []types.EmployeeStats{
			{UserID: "1", CompanyCount: 1, DealCount: 4, CompaniesWithoutDeals: 0, CompanyCountDiff: 1, DealCountDiff: -2, CompaniesWithoutDealsDiff: 0},
			{UserID: "2", CompanyCount: 2, DealCount: 0, CompaniesWithoutDeals: 2, CompanyCountDiff: -1, DealCountDiff: 0, CompaniesWithoutDealsDiff: 1},
		}

		totals := stats.Totals(rows)

		Convey("Then totals should sum all six fields", func() {
			So(totals, ShouldNotBeNil)
			So(totals.CompanyCount, ShouldEqual, 3)
			So(totals.DealCount, ShouldEqual, 4)
			So(totals.CompaniesWithoutDeals, ShouldEqual, 2)
			So(totals.CompanyCountDiff, ShouldEqual, 0)
			So(totals.DealCountDiff, ShouldEqual, -2)
			So(totals.CompaniesWithoutDealsDiff, ShouldEqual, 1)
		})
	})
}

func TestResolveName(t *testing.T) {
	Convey("Given employees with different name data", t, func() {
		Convey("Then last and first name should be joined", func() {
			So(stats.ResolveName(model.Employee{ID: "1", LastName: "Ivanov", FirstName: "Petr"}), ShouldEqual, "Ivanov Petr")
		})

		Convey("Then a lone first name should be used as is", func() {
			So(stats.ResolveName(model.Employee{ID: "1", LastName: "", FirstName: "Petr"}), ShouldEqual, "Petr")
		})

		Convey("Then a lone last name should be used as is", func() {
			So(stats.ResolveName(model.Employee{ID: "1", LastName: "Ivanov"}), ShouldEqual, "Ivanov")
		})

		Convey("Then the email should be used without names", func() {
			So(stats.ResolveName(model.Employee{ID: "1", Email: strPtr("a@b.com")}), ShouldEqual, "a@b.com")
		})

		Convey("Then names should win over the email", func() {
			So(stats.ResolveName(model.Employee{ID: "1", FirstName: "Petr", Email: strPtr("a@b.com")}), ShouldEqual, "Petr")
		})

		Convey("Then the id should be embedded as a last resort", func() {
			name := stats.ResolveName(model.Employee{ID: "42"})
			So(strings.Contains(name, "42"), ShouldBeTrue)
		})

		Convey("Then an empty email should fall through to the id", func() {
			name := stats.ResolveName(model.Employee{ID: "42", Email: strPtr("")})
			So(name, ShouldEqual, "Employee ID:42")
		})

		Convey("Then Compute should use the resolved name", func() {
			rows := stats.Compute([]model.Employee{{ID: "5", Email: strPtr("x@y.z")}}, stats.Snapshot{}, nil)
			So(rows[0].UserName, ShouldEqual, "x@y.z")
		})
	})
}
