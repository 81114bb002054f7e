package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
	"github.com/sells-group/reconcile-cli/internal/store"
	"github.com/sells-group/reconcile-cli/internal/table"
)

type suggestRequest struct {
	ReferenceColumns []string `json:"reference_columns"`
	IncomingColumns  []string `json:"incoming_columns"`
}

type suggestResponse struct {
	Mapping reconcile.Mapping `json:"mapping"`
}

type reconcileRequest struct {
	Reference *table.Dataset     `json:"reference"`
	Incoming  *table.Dataset     `json:"incoming"`
	Mapping   *reconcile.Mapping `json:"mapping,omitempty"`
	Template  string             `json:"template,omitempty"`
	Key       string             `json:"key,omitempty"`
}

type reconcileResponse struct {
	RunID        string            `json:"run_id,omitempty"`
	Key          reconcile.Pair    `json:"key"`
	Mapping      reconcile.Mapping `json:"mapping"`
	Stats        reconcile.Stats   `json:"stats"`
	Novel        *table.Dataset    `json:"novel"`
	NovelIndices []int             `json:"novel_indices"`
	Updated      *table.Dataset    `json:"updated"`
}

type templateRequest struct {
	Mapping reconcile.Mapping `json:"mapping"`
}

// decode reads a JSON body into v, writing the error response itself when it
// fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{
		Mapping: reconcile.SuggestMapping(req.ReferenceColumns, req.IncomingColumns),
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Reference == nil || req.Incoming == nil {
		writeError(w, http.StatusBadRequest, "reference and incoming datasets are required")
		return
	}

	m, status, err := s.resolveMapping(r, &req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	res, err := reconcile.Reconcile(req.Reference, req.Incoming, m)
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidMapping) || errors.Is(err, reconcile.ErrEmptyMapping) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		zap.L().Error("api: reconcile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reconcile failed")
		return
	}

	stats := res.Stats()
	resp := reconcileResponse{
		Key:          res.Key,
		Mapping:      res.Mapping,
		Stats:        stats,
		Novel:        res.Novel.Rows,
		NovelIndices: res.Novel.Indices,
		Updated:      res.Updated,
	}
	if resp.NovelIndices == nil {
		resp.NovelIndices = []int{}
	}

	if s.store != nil {
		run, err := s.store.CreateRun(r.Context(), model.Run{
			Reference: "api",
			Incoming:  "api",
			Key:       res.Key,
			Mapping:   res.Mapping,
			Stats:     stats,
			Status:    model.StatusFor(stats, true),
		})
		if err != nil {
			zap.L().Warn("api: record run", zap.Error(err))
		} else {
			resp.RunID = run.ID
		}
	}

	zap.L().Info("api: reconcile complete",
		zap.String("key_reference", res.Key.Reference),
		zap.String("key_incoming", res.Key.Incoming),
		zap.Int("novel", stats.Novel),
		zap.Int("matched", stats.Matched),
		zap.Int("excluded_null_keys", stats.ExcludedNullKeys),
	)
	writeJSON(w, http.StatusOK, resp)
}

// resolveMapping picks the mapping for a request: explicit, then a saved
// template, then the name-based suggestion. A key override is applied last.
func (s *Server) resolveMapping(r *http.Request, req *reconcileRequest) (reconcile.Mapping, int, error) {
	var m reconcile.Mapping
	switch {
	case req.Mapping != nil:
		m = *req.Mapping
	case req.Template != "":
		if s.store == nil {
			return m, http.StatusBadRequest, errors.New("templates are not available without a store")
		}
		tpl, err := s.store.GetTemplate(r.Context(), req.Template)
		if errors.Is(err, store.ErrNotFound) {
			return m, http.StatusNotFound, err
		}
		if err != nil {
			return m, http.StatusInternalServerError, err
		}
		m = tpl.Mapping
	default:
		m = reconcile.SuggestMapping(req.Reference.Schema(), req.Incoming.Schema())
	}

	if req.Key != "" {
		keyed, err := m.WithKey(req.Key)
		if err != nil {
			return m, http.StatusUnprocessableEntity, err
		}
		m = keyed
	}
	return m, http.StatusOK, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:    model.RunStatus(q.Get("status")),
		Reference: q.Get("reference"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListTemplates(r.Context())
	if err != nil {
		zap.L().Error("api: list templates", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list templates failed")
		return
	}
	if list == nil {
		list = []model.MappingTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.store.GetTemplate(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get template", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get template failed")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Mapping.IsEmpty() {
		writeError(w, http.StatusUnprocessableEntity, reconcile.ErrEmptyMapping.Error())
		return
	}
	tpl, err := s.store.SaveTemplate(r.Context(), chi.URLParam(r, "name"), req.Mapping)
	if err != nil {
		zap.L().Error("api: save template", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save template failed")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}
