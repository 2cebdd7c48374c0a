package bitrix_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/b24stats/internal/adapters/bitrix"
	"github.com/okian/b24stats/internal/domain/model"
	"github.com/okian/b24stats/pkg/logger"
	"github.com/okian/b24stats/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const webhookPath = "/rest/1/secret/"

type listBody struct {
	Filter map[string]string `json:"filter"`
	Select []string          `json:"select"`
	Start  int               `json:"start"`
}

// fakePortal records requests and answers with canned handlers keyed by method.
type fakePortal struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []listBody
	handlers map[string]http.HandlerFunc
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body listBody
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	p.mu.Lock()
	p.requests = append(p.requests, r)
	p.bodies = append(p.bodies, body)
	p.mu.Unlock()

	method := strings.TrimPrefix(r.URL.Path, webhookPath)
	h, ok := p.handlers[method]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"ERROR_METHOD_NOT_FOUND","error_description":"Method not found!"}`))
		return
	}
	h(w, r)
}

func newClient(srv *httptest.Server, opts ...bitrix.Option) *bitrix.Client {
	opts = append([]bitrix.Option{bitrix.WithMetrics(metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry())))}, opts...)
	c, err := bitrix.New(srv.URL+strings.TrimSuffix(webhookPath, "/"), opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func march() model.Period {
	p, _ := model.ParsePeriod("2024-03-01", "2024-03-31")
	return p
}

func TestNew(t *testing.T) {
	Convey("Given webhook urls", t, func() {
		Convey("Then a missing trailing slash should be added", func() {
			u, err := bitrix.ParseWebhook("https://acme.bitrix24.ru/rest/1/abc")
			So(err, ShouldBeNil)
			So(u.String(), ShouldEqual, "https://acme.bitrix24.ru/rest/1/abc/")
		})

		Convey("Then relative or non-http urls should be rejected", func() {
			for _, raw := range []string{"", "rest/1/abc/", "ftp://acme/rest/1/abc/", "https:///rest"} {
				_, err := bitrix.New(raw)
				So(errors.Is(err, bitrix.ErrBadWebhook), ShouldBeTrue)
			}
		})
	})
}

func TestFetchEmployees(t *testing.T) {
	Convey("Given a portal with two pages of users", t, func() {
		portal := &fakePortal{handlers: map[string]http.HandlerFunc{
			bitrix.MethodUsers: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("start") == "50" {
					_, _ = w.Write([]byte(`{"result":[{"ID":"2","NAME":"","LAST_NAME":null,"EMAIL":"b@acme.io","UF_DEPARTMENT":false}],"total":2}`))
					return
				}
				_, _ = w.Write([]byte(`{"result":[{"ID":1,"NAME":"Petr","LAST_NAME":"Ivanov","SECOND_NAME":"","PERSONAL_PHOTO":"https://cdn/p.png","UF_DEPARTMENT":[1,"5"]}],"next":50,"total":2}`))
			},
		}}
		srv := httptest.NewServer(portal)
		defer srv.Close()
		client := newClient(srv)

		Convey("When fetching employees", func() {
			employees, err := client.FetchEmployees(context.Background())

			Convey("Then both pages should be merged in order", func() {
				So(err, ShouldBeNil)
				So(employees, ShouldHaveLength, 2)
				So(employees[0].ID, ShouldEqual, "1")
				So(employees[1].ID, ShouldEqual, "2")
			})

			Convey("And loosely typed fields should be normalised", func() {
				So(employees[0].FirstName, ShouldEqual, "Petr")
				So(employees[0].LastName, ShouldEqual, "Ivanov")
				So(employees[0].MiddleName, ShouldBeNil)
				So(*employees[0].Photo, ShouldEqual, "https://cdn/p.png")
				So(employees[0].Departments, ShouldResemble, []int{1, 5})
				So(employees[1].LastName, ShouldEqual, "")
				So(*employees[1].Email, ShouldEqual, "b@acme.io")
				So(employees[1].Departments, ShouldBeNil)
			})

			Convey("And user.get should be requested with GET", func() {
				So(portal.requests, ShouldHaveLength, 2)
				So(portal.requests[0].Method, ShouldEqual, http.MethodGet)
				So(portal.requests[0].URL.Path, ShouldEqual, webhookPath+bitrix.MethodUsers)
			})
		})
	})

	Convey("Given a portal with no users", t, func() {
		portal := &fakePortal{handlers: map[string]http.HandlerFunc{
			bitrix.MethodUsers: respond(`{"result":[],"total":0}`),
		}}
		srv := httptest.NewServer(portal)
		defer srv.Close()

		employees, err := newClient(srv).FetchEmployees(context.Background())

		Convey("Then an empty, non-nil slice should be returned", func() {
			So(err, ShouldBeNil)
			So(employees, ShouldNotBeNil)
			So(employees, ShouldBeEmpty)
		})
	})
}

func TestFetchCompaniesAndDeals(t *testing.T) {
	Convey("Given a portal with companies and deals", t, func() {
		portal := &fakePortal{handlers: map[string]http.HandlerFunc{
			bitrix.MethodCompanies: respond(`{"result":[{"ID":"c1","TITLE":"Acme","ASSIGNED_BY_ID":"1"},{"ID":"c2","TITLE":"Globex","ASSIGNED_BY_ID":7}],"total":2}`),
			bitrix.MethodDeals:     respond(`{"result":[{"ID":"d1","TITLE":"Big","COMPANY_ID":"c1","ASSIGNED_BY_ID":"3"}],"total":1}`),
		}}
		srv := httptest.NewServer(portal)
		defer srv.Close()
		client := newClient(srv)
		period := model.NewPeriod(time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC), time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC))

		Convey("When fetching companies", func() {
			companies, err := client.FetchCompanies(context.Background(), period)

			Convey("Then they should be mapped with their owner", func() {
				So(err, ShouldBeNil)
				So(companies, ShouldResemble, []model.Company{
					{ID: "c1", Title: "Acme", OwnerID: "1"},
					{ID: "c2", Title: "Globex", OwnerID: "7"},
				})
			})

			Convey("And the request should filter by creation date without time", func() {
				So(portal.requests[0].Method, ShouldEqual, http.MethodPost)
				So(portal.bodies[0].Filter, ShouldResemble, map[string]string{
					">=DATE_CREATE": "2024-03-01",
					"<=DATE_CREATE": "2024-03-31",
				})
				So(portal.bodies[0].Select, ShouldResemble, []string{"ID", "TITLE", "ASSIGNED_BY_ID"})
			})
		})

		Convey("When fetching deals", func() {
			deals, err := client.FetchDeals(context.Background(), period)

			Convey("Then they should carry company and owner ids", func() {
				So(err, ShouldBeNil)
				So(deals, ShouldResemble, []model.Deal{{ID: "d1", Title: "Big", CompanyID: "c1", OwnerID: "3"}})
				So(portal.bodies[0].Select, ShouldContain, "COMPANY_ID")
			})
		})
	})

	Convey("Given a paged deal list", t, func() {
		portal := &fakePortal{}
		portal.handlers = map[string]http.HandlerFunc{
			bitrix.MethodDeals: func(w http.ResponseWriter, r *http.Request) {
				portal.mu.Lock()
				start := portal.bodies[len(portal.bodies)-1].Start
				portal.mu.Unlock()
				if start == 0 {
					_, _ = w.Write([]byte(`{"result":[{"ID":"d1","COMPANY_ID":"c1"}],"next":1,"total":2}`))
					return
				}
				_, _ = w.Write([]byte(fmt.Sprintf(`{"result":[{"ID":"d%d","COMPANY_ID":"c1"}],"total":2}`, start+1)))
			},
		}
		srv := httptest.NewServer(portal)
		defer srv.Close()

		Convey("When the page limit allows it", func() {
			deals, err := newClient(srv).FetchDeals(context.Background(), march())

			Convey("Then the client should follow the next cursor", func() {
				So(err, ShouldBeNil)
				So(deals, ShouldHaveLength, 2)
				So(deals[1].ID, ShouldEqual, "d2")
				So(portal.bodies[1].Start, ShouldEqual, 1)
			})
		})

		Convey("When the page limit is one", func() {
			_, err := newClient(srv, bitrix.WithMaxPages(1)).FetchDeals(context.Background(), march())

			Convey("Then it should fail as a transport error", func() {
				So(errors.Is(err, bitrix.ErrTooManyPages), ShouldBeTrue)
				So(errors.Is(err, bitrix.ErrTransport), ShouldBeTrue)
			})
		})
	})
}

func TestFetchErrors(t *testing.T) {
	Convey("Given a portal refusing the crm scope", t, func() {
		portal := &fakePortal{handlers: map[string]http.HandlerFunc{
			bitrix.MethodCompanies: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"insufficient_scope","error_description":"The request requires higher privileges than provided by the webhook token"}`))
			},
			bitrix.MethodDeals: respond(`{"error":"ACCESS_DENIED","error_description":"Access denied"}`),
		}}
		srv := httptest.NewServer(portal)
		defer srv.Close()
		client := newClient(srv)

		Convey("When fetching companies", func() {
			_, err := client.FetchCompanies(context.Background(), march())

			Convey("Then the error should be a permission error with details", func() {
				So(errors.Is(err, bitrix.ErrPermission), ShouldBeTrue)
				So(errors.Is(err, bitrix.ErrTransport), ShouldBeFalse)
				var be *bitrix.Error
				So(errors.As(err, &be), ShouldBeTrue)
				So(be.Status, ShouldEqual, http.StatusUnauthorized)
				So(be.Code, ShouldEqual, "insufficient_scope")
				So(be.Method, ShouldEqual, bitrix.MethodCompanies)
				So(bitrix.KindLabel(err), ShouldEqual, "permission")
			})
		})

		Convey("When the denial comes with HTTP 200", func() {
			_, err := client.FetchDeals(context.Background(), march())

			Convey("Then the remote code alone should classify it", func() {
				So(errors.Is(err, bitrix.ErrPermission), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "ACCESS_DENIED")
			})
		})
	})

	Convey("Given a failing portal", t, func() {
		portal := &fakePortal{handlers: map[string]http.HandlerFunc{
			bitrix.MethodUsers: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`<html>bad gateway</html>`))
			},
			bitrix.MethodDeals: respond(`{"result":`),
			bitrix.MethodCompanies: respond(`{"result":{"unexpected":"object"}}`),
		}}
		srv := httptest.NewServer(portal)
		defer srv.Close()
		client := newClient(srv)

		Convey("Then an HTTP failure should be a transport error", func() {
			_, err := client.FetchEmployees(context.Background())
			So(errors.Is(err, bitrix.ErrTransport), ShouldBeTrue)
			So(bitrix.KindLabel(err), ShouldEqual, "transport")
			So(err.Error(), ShouldContainSubstring, "http 502")
		})

		Convey("Then a truncated body should be a transport error", func() {
			_, err := client.FetchDeals(context.Background(), march())
			So(errors.Is(err, bitrix.ErrTransport), ShouldBeTrue)
		})

		Convey("Then an unexpected result shape should be a transport error", func() {
			_, err := client.FetchCompanies(context.Background(), march())
			So(errors.Is(err, bitrix.ErrTransport), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable portal", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		client := newClient(srv)
		srv.Close()

		_, err := client.FetchEmployees(context.Background())

		Convey("Then the error should be a transport error", func() {
			So(errors.Is(err, bitrix.ErrTransport), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		portal := &fakePortal{handlers: map[string]http.HandlerFunc{
			bitrix.MethodUsers: respond(`{"result":[]}`),
		}}
		srv := httptest.NewServer(portal)
		defer srv.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newClient(srv).FetchEmployees(ctx)

		Convey("Then the cause should stay visible", func() {
			So(errors.Is(err, bitrix.ErrTransport), ShouldBeTrue)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
