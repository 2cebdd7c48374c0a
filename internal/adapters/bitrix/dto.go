package bitrix

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/okian/b24stats/internal/domain/model"
)

// envelope is the common response shape of every REST method.
type envelope struct {
	Result           json.RawMessage `json:"result"`
	Next             *int            `json:"next"`
	Total            int             `json:"total"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// listRequest is the body of crm.*.list calls.
type listRequest struct {
	Filter map[string]string `json:"filter,omitempty"`
	Select []string          `json:"select,omitempty"`
	Start  int               `json:"start,omitempty"`
}

// flexString accepts strings, numbers and booleans; the REST API is not
// consistent about identifier types.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, string(b) == "null", string(b) == "false", string(b) == "true":
		*f = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unsupported value %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// departments accepts [1,2], ["1","2"] or a non-array placeholder such as false.
type departments []int

func (d *departments) UnmarshalJSON(b []byte) error {
	var raw []flexString
	if err := json.Unmarshal(b, &raw); err != nil {
		*d = nil
		return nil //nolint:nilerr // non-array values mean "no departments"
	}
	if raw == nil {
		*d = nil
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, r := range raw {
		n, err := strconv.Atoi(string(r))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	*d = out
	return nil
}

type userDTO struct {
	ID          flexString  `json:"ID"`
	Name        *flexString `json:"NAME"`
	LastName    *flexString `json:"LAST_NAME"`
	SecondName  *flexString `json:"SECOND_NAME"`
	Photo       *flexString `json:"PERSONAL_PHOTO"`
	Email       *flexString `json:"EMAIL"`
	Departments departments `json:"UF_DEPARTMENT"`
}

func (u userDTO) toModel() model.Employee {
	return model.Employee{
		ID:          string(u.ID),
		FirstName:   value(u.Name),
		LastName:    value(u.LastName),
		MiddleName:  optional(u.SecondName),
		Email:       optional(u.Email),
		Photo:       optional(u.Photo),
		Departments: []int(u.Departments),
	}
}

type companyDTO struct {
	ID           flexString `json:"ID"`
	Title        flexString `json:"TITLE"`
	AssignedByID flexString `json:"ASSIGNED_BY_ID"`
}

func (c companyDTO) toModel() model.Company {
	return model.Company{ID: string(c.ID), Title: string(c.Title), OwnerID: string(c.AssignedByID)}
}

type dealDTO struct {
	ID           flexString `json:"ID"`
	Title        flexString `json:"TITLE"`
	CompanyID    flexString `json:"COMPANY_ID"`
	AssignedByID flexString `json:"ASSIGNED_BY_ID"`
}

func (d dealDTO) toModel() model.Deal {
	return model.Deal{
		ID:        string(d.ID),
		Title:     string(d.Title),
		CompanyID: string(d.CompanyID),
		OwnerID:   string(d.AssignedByID),
	}
}

func value(p *flexString) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func optional(p *flexString) *string {
	if p == nil || *p == "" {
		return nil
	}
	s := string(*p)
	return &s
}
