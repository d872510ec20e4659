package matchnote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/matchnote/matchnote/pkg/account"
	"github.com/matchnote/matchnote/pkg/client"
	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/notebook"
	"github.com/matchnote/matchnote/pkg/reconcile"
	"github.com/matchnote/matchnote/pkg/store"
)

// Query parameters with a meaning of their own. Every other parameter of a
// list request filters on the column of the same name.
const (
	paramIncludeDeleted = "include_deleted"
	paramSort           = "sort"
)

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	version, err := a.local.SchemaVersion(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"signed_in":      a.session.SignedIn(ctx),
		"schema_version": version,
		"time":           time.Now().Unix(),
	})
}

// kindOf resolves the {kind} path variable, writing a 404 when it names no collection.
func kindOf(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, ok := models.KindFromCollection(mux.Vars(r)["kind"])
	if !ok {
		respondError(w, http.StatusNotFound, "unknown collection")
	}
	return kind, ok
}

func listOptions(r *http.Request) (store.ListOptions, error) {
	var opts store.ListOptions
	for name, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		switch name {
		case paramIncludeDeleted:
			b, err := strconv.ParseBool(values[0])
			if err != nil {
				return opts, errors.New("include_deleted must be a boolean")
			}
			opts.IncludeDeleted = b
		case paramSort:
			switch values[0] {
			case "order":
				opts.Sort = store.SortByOrder
			case "created_at":
				opts.Sort = store.SortByCreatedAt
			default:
				return opts, errors.New("sort must be order or created_at")
			}
		default:
			if opts.Match == nil {
				opts.Match = make(map[string]any)
			}
			opts.Match[name] = matchValue(values[0])
		}
	}
	return opts, nil
}

// matchValue types a filter value so integer and boolean columns compare
// against numbers rather than text.
func matchValue(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
		return b
	}
	return v
}

func (a *App) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := a.notebook.List(r.Context(), kind, opts)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (a *App) handleCount(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := a.notebook.Count(r.Context(), kind, opts)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (a *App) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	rec, err := decodeRecord(r, kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := a.notebook.Save(r.Context(), rec); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (a *App) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	rec, err := a.notebook.Get(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, kind.String()+" not found")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (a *App) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	existing, err := a.notebook.Get(r.Context(), kind, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, kind.String()+" not found")
		return
	}

	rec, err := decodeRecord(r, kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	rec.SetRecordID(id)
	if err := a.notebook.Save(r.Context(), rec); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (a *App) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(w, r)
	if !ok {
		return
	}
	n, err := a.notebook.Delete(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if n == 0 {
		respondError(w, http.StatusNotFound, kind.String()+" not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// newSyncReport converts a report into the wire form the client decodes.
func newSyncReport(report reconcile.Report) client.SyncReport {
	resp := client.SyncReport{
		Results:  make([]client.SyncResult, 0, len(report.Results)),
		Changed:  report.Changed(),
		Started:  report.Started,
		Finished: report.Finished,
	}
	for _, res := range report.Results {
		sr := client.SyncResult{
			Kind:          res.Kind,
			Pushed:        res.Pushed,
			Pulled:        res.Pulled,
			PushedUpdates: res.PushedUpdates,
			PulledUpdates: res.PulledUpdates,
			Unchanged:     res.Unchanged,
			Failed:        res.Failed,
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, sr)
	}
	return resp
}

func (a *App) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := a.Sync(r.Context())
	if errors.Is(err, notebook.ErrNotReady) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newSyncReport(report))
}

type accountRequest struct {
	AccountID string `json:"account_id"`
}

type accountResponse struct {
	AccountID string `json:"account_id"`
	Records   int64  `json:"records"`
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	a.bindAccount(w, r, a.account.Register)
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	a.bindAccount(w, r, a.account.Login)
}

func (a *App) bindAccount(w http.ResponseWriter, r *http.Request, bind func(context.Context, string) (int64, error)) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	n, err := bind(r.Context(), req.AccountID)
	if errors.Is(err, account.ErrEmptyAccount) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, accountResponse{AccountID: req.AccountID, Records: n})
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.account.Logout(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func decodeRecord(r *http.Request, kind models.Kind) (models.Record, error) {
	rec, err := models.New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// respondStoreError maps store errors onto status codes.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidRecord), errors.Is(err, store.ErrUnknownField):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnknownKind):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
