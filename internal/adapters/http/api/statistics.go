package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/b24stats/internal/domain/model"
	"github.com/okian/b24stats/internal/domain/types"
	"github.com/okian/b24stats/pkg/logger"
)

// StatisticsDependencies defines the service operations behind the
// statistics endpoints.
type StatisticsDependencies interface {
	Statistics(ctx context.Context, current model.Period, compare bool) (types.Report, error)
	PreviousPeriod(current model.Period) (model.Period, error)
	CurrentMonth() model.Period
}

// StatisticsHandler handles report and period requests.
type StatisticsHandler struct {
	deps             StatisticsDependencies
	compareByDefault bool
	logger           logger.Logger
}

// NewStatisticsHandler creates a new statistics handler.
func NewStatisticsHandler(deps StatisticsDependencies, compareByDefault bool, l logger.Logger) *StatisticsHandler {
	return &StatisticsHandler{deps: deps, compareByDefault: compareByDefault, logger: l}
}

// HandleStatistics handles GET /api/v1/statistics?start=&end=&compare=.
func (h *StatisticsHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_statistics"

	period, err := h.period(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	compare := h.compareByDefault
	if raw := r.URL.Query().Get("compare"); raw != "" {
		compare, err = strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, r, op, NewKind(op, ErrBadRequest))
			return
		}
	}

	report, err := h.deps.Statistics(r.Context(), period, compare)
	if err != nil {
		h.fail(w, r, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type periodsResponse struct {
	Current  model.Period `json:"current"`
	Previous model.Period `json:"previous"`
}

// HandlePreviousPeriod handles GET /api/v1/periods/previous?start=&end=.
func (h *StatisticsHandler) HandlePreviousPeriod(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_previous_period"

	period, err := h.period(r)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	prev, err := h.deps.PreviousPeriod(period)
	if err != nil {
		h.fail(w, r, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, periodsResponse{Current: period, Previous: prev})
}

// period reads start and end, each defaulting to the current month bounds.
func (h *StatisticsHandler) period(r *http.Request) (model.Period, error) {
	def := h.deps.CurrentMonth()
	q := r.URL.Query()

	start, end := def.Start, def.End
	var err error
	if raw := q.Get("start"); raw != "" {
		if start, err = model.ParseDate(raw); err != nil {
			return model.Period{}, err
		}
	}
	if raw := q.Get("end"); raw != "" {
		if end, err = model.ParseDate(raw); err != nil {
			return model.Period{}, err
		}
	}
	p := model.NewPeriod(start, end)
	if err := p.Validate(); err != nil {
		return model.Period{}, err
	}
	return p, nil
}

func (h *StatisticsHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	if status >= statusInternalError {
		h.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.String("code", code), logger.Error(err))
	} else {
		h.logger.Warn(r.Context(), "request rejected", logger.String("op", op), logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}
