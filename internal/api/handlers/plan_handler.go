package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/netplan/internal/adapter"
	"github.com/andresuchdata/netplan/internal/domain"
	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/andresuchdata/netplan/internal/repository"
	"github.com/andresuchdata/netplan/internal/service"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type PlanHandler struct {
	planService *service.PlanService
}

func NewPlanHandler(planService *service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// PlanOptions overrides individual solver defaults.
type PlanOptions struct {
	Solver           *string  `json:"solver"`
	TimeLimitSeconds *float64 `json:"time_limit_seconds"`
	MIPGap           *float64 `json:"mip_gap"`
	MaxNodes         *int     `json:"max_nodes"`
}

func (o *PlanOptions) apply(base solver.Options) solver.Options {
	if o == nil {
		return base
	}
	if o.Solver != nil {
		base.SolverName = *o.Solver
	}
	if o.TimeLimitSeconds != nil {
		base.TimeLimit = time.Duration(*o.TimeLimitSeconds * float64(time.Second))
	}
	if o.MIPGap != nil {
		base.MIPGap = *o.MIPGap
	}
	if o.MaxNodes != nil {
		base.MaxNodes = *o.MaxNodes
	}
	return base
}

// PlanRequest is the JSON body of POST /plans.
type PlanRequest struct {
	RunID   string          `json:"run_id"`
	Input   json.RawMessage `json:"input"`
	Options *PlanOptions    `json:"options"`
}

// CreatePlan solves one planning request synchronously. JSON bodies carry
// the input tables inline; multipart bodies carry an XLSX workbook in the
// "file" field with options as form fields.
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	req, err := h.bindRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.planService.Plan(c.Request.Context(), req)
	if res == nil {
		status, message := statusForError(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("plan request failed")
		}
		c.JSON(status, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *PlanHandler) bindRequest(c *gin.Context) (engine.Request, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return h.bindWorkbook(c)
	}

	var body PlanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return engine.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	if len(body.Input) == 0 {
		return engine.Request{}, errors.New("input is required")
	}
	in, err := adapter.DecodeJSON(bytes.NewReader(body.Input))
	if err != nil {
		return engine.Request{}, err
	}

	req := engine.Request{RunID: body.RunID, Input: in}
	if body.Options != nil {
		opts := body.Options.apply(h.planService.DefaultOptions())
		req.Options = &opts
	}
	return req, nil
}

func (h *PlanHandler) bindWorkbook(c *gin.Context) (engine.Request, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return engine.Request{}, errors.New("no workbook provided")
	}
	f, err := file.Open()
	if err != nil {
		return engine.Request{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	in, err := adapter.ReadWorkbook(f)
	if err != nil {
		return engine.Request{}, err
	}

	var opts PlanOptions
	set := false
	if v := c.PostForm("solver"); v != "" {
		opts.Solver, set = &v, true
	}
	for _, field := range []struct {
		name string
		dst  **float64
	}{{"time_limit_seconds", &opts.TimeLimitSeconds}, {"mip_gap", &opts.MIPGap}} {
		raw := c.PostForm(field.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return engine.Request{}, fmt.Errorf("invalid %s: %w", field.name, err)
		}
		*field.dst, set = &v, true
	}
	if raw := c.PostForm("max_nodes"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return engine.Request{}, fmt.Errorf("invalid max_nodes: %w", err)
		}
		opts.MaxNodes, set = &v, true
	}

	req := engine.Request{RunID: c.PostForm("run_id"), Input: in}
	if set {
		o := opts.apply(h.planService.DefaultOptions())
		req.Options = &o
	}
	return req, nil
}

// GetPlan returns a stored run document.
func (h *PlanHandler) GetPlan(c *gin.Context) {
	runID := c.Param("run_id")
	res, err := h.planService.Get(c.Request.Context(), runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("failed to load run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListPlans returns recent runs, newest first.
func (h *PlanHandler) ListPlans(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	runs, err := h.planService.List(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func statusForError(err error) (int, string) {
	var (
		empty   *domain.DataEmptyError
		options *solver.OptionsError
	)
	switch {
	case errors.As(err, &empty):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &options):
		return http.StatusBadRequest, err.Error()
	case err == nil:
		return http.StatusInternalServerError, "no result"
	default:
		return http.StatusInternalServerError, "planning failed"
	}
}
