package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/andresuchdata/netplan/internal/metrics"
	"github.com/andresuchdata/netplan/internal/service"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xuri/excelize/v2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const minimalInput = `{
	"plants": [{"plant_id": "P1", "period": "1", "max_capacity": 100, "variable_cost": 10}],
	"routes": [{"origin_plant_id": "P1", "destination_node_id": "C1", "mode": "truck",
		"variable_cost": 1, "vehicle_capacity": 50, "fixed_trip_cost": 5}],
	"demand": [{"node_id": "C1", "period": "1", "quantity": 80}]
}`

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cfg := engine.DefaultConfig()
	cfg.Solver.TimeLimit = 30 * time.Second
	cfg.Solver.MIPGap = 0
	eng := engine.New(solver.NewDispatcher(nil, m), cfg, m)
	svc := service.NewPlanService(eng, nil, nil, nil, m, service.Options{})
	return NewRouter(&Services{PlanService: svc}, nil, reg)
}

func do(router http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type planResponse struct {
	RunID          string   `json:"run_id"`
	Status         string   `json:"status"`
	Solver         string   `json:"solver"`
	ObjectiveValue *float64 `json:"objective_value"`
	Error          string   `json:"error"`
	Warnings       []string `json:"warnings"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) planResponse {
	t.Helper()
	var out planResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}

	body := `{"run_id": "m1", "input": ` + minimalInput + `}`
	if w := do(router, http.MethodPost, "/api/v1/plans", "application/json", []byte(body)); w.Code != http.StatusOK {
		t.Fatalf("plan = %d %s", w.Code, w.Body.String())
	}

	w = do(router, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "netplan_engine_runs_total") {
		t.Fatalf("metrics = %d %s", w.Code, w.Body.String())
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	router := newTestRouter(t)

	body := `{"run_id": "r1", "input": ` + minimalInput + `, "options": {"solver": "bnb", "mip_gap": 0}}`
	w := do(router, http.MethodPost, "/api/v1/plans", "application/json", []byte(body))
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	res := decode(t, w)
	if res.RunID != "r1" || res.Status != "optimal" || res.ObjectiveValue == nil || *res.ObjectiveValue != 890 {
		t.Fatalf("create result = %+v", res)
	}

	w = do(router, http.MethodGet, "/api/v1/plans/r1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w); got.RunID != "r1" || *got.ObjectiveValue != 890 {
		t.Fatalf("get result = %+v", got)
	}

	w = do(router, http.MethodGet, "/api/v1/plans?limit=5", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"r1"`) {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
}

func TestCreatePlanFallbackWarning(t *testing.T) {
	router := newTestRouter(t)
	body := `{"input": ` + minimalInput + `, "options": {"solver": "gurobi"}}`
	w := do(router, http.MethodPost, "/api/v1/plans", "application/json", []byte(body))
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	res := decode(t, w)
	if res.Solver != "bnb" || len(res.Warnings) == 0 || res.RunID == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestCreatePlanInfeasibleReturnsDocument(t *testing.T) {
	router := newTestRouter(t)
	input := strings.Replace(minimalInput, `"variable_cost": 10}`, `"variable_cost": 10, "safety_stock": 500}`, 1)
	w := do(router, http.MethodPost, "/api/v1/plans", "application/json", []byte(`{"input": `+input+`}`))
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	res := decode(t, w)
	if res.Status != "infeasible" || res.Error == "" || res.ObjectiveValue != nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestCreatePlanErrors(t *testing.T) {
	router := newTestRouter(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{`, http.StatusBadRequest},
		{"missing input", `{"run_id": "x"}`, http.StatusBadRequest},
		{"empty input", `{"input": {}}`, http.StatusUnprocessableEntity},
		{"invalid gap", `{"input": ` + minimalInput + `, "options": {"mip_gap": 2}}`, http.StatusBadRequest},
		{"negative time limit", `{"input": ` + minimalInput + `, "options": {"time_limit_seconds": -1}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/api/v1/plans", "application/json", []byte(tt.body))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGetPlanNotFound(t *testing.T) {
	router := newTestRouter(t)
	if w := do(router, http.MethodGet, "/api/v1/plans/missing", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w := do(router, http.MethodGet, "/api/v1/plans?limit=zero", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", w.Code)
	}
}

func TestCreatePlanFromWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheets := map[string][][]any{
		"plants": {{"plant_id", "period", "max_capacity", "variable_cost"}, {"P1", "1", 100, 10}},
		"routes": {{"origin_plant_id", "destination_node_id", "mode", "variable_cost", "vehicle_capacity", "fixed_trip_cost"}, {"P1", "C1", "truck", 1, 50, 5}},
		"demand": {{"node_id", "period", "quantity"}, {"C1", "1", 80}},
	}
	for name, rows := range sheets {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatal(err)
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatal(err)
			}
		}
	}
	var book bytes.Buffer
	if err := f.Write(&book); err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "network.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(book.Bytes()); err != nil {
		t.Fatal(err)
	}
	_ = mw.WriteField("run_id", "wb")
	_ = mw.WriteField("mip_gap", "0")
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	router := newTestRouter(t)
	w := do(router, http.MethodPost, "/api/v1/plans", mw.FormDataContentType(), body.Bytes())
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	res := decode(t, w)
	if res.RunID != "wb" || *res.ObjectiveValue != 890 {
		t.Fatalf("result = %+v", res)
	}
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	got, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " ", "*"})
	if !all || len(got) != 2 || got[1] != "http://b.test" {
		t.Fatalf("normalizeAllowedOrigins = %v, %v", got, all)
	}
}
