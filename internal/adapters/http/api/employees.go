package api

import (
	"context"
	"net/http"

	"github.com/okian/b24stats/internal/domain/types"
	"github.com/okian/b24stats/pkg/logger"
)

// EmployeesDependencies lists employees with resolved names.
type EmployeesDependencies interface {
	Employees(ctx context.Context) ([]types.EmployeeView, error)
}

// EmployeesHandler handles employee listing requests.
type EmployeesHandler struct {
	deps   EmployeesDependencies
	logger logger.Logger
}

// NewEmployeesHandler creates a new employees handler.
func NewEmployeesHandler(deps EmployeesDependencies, l logger.Logger) *EmployeesHandler {
	return &EmployeesHandler{deps: deps, logger: l}
}

// HandleEmployees handles GET /api/v1/employees.
func (h *EmployeesHandler) HandleEmployees(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_employees"
	employees, err := h.deps.Employees(r.Context())
	if err != nil {
		status, code := statusFor(err)
		h.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.String("code", code), logger.Error(err))
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, employees)
}
