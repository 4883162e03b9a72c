package httpapi

import (
	"net/http"
	"strings"

	"goalboard.org/internal/audit"
	"goalboard.org/internal/events"
	"goalboard.org/internal/goals"
)

type addSmallGoalRequest struct {
	Title string `json:"titulo"`
}

func (a *API) handleGoalsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listGroupGoals(w, r)
	case http.MethodPost:
		a.createGoal(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleGoalResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/metas/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		a.goalByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "metas-pequenas":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.addSmallGoal(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "metas-pequenas" && parts[2] != "":
		a.smallGoalByID(w, r, parts[0], parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) goalByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		goal, err := a.svc.GetGoal(r.Context(), id)
		if err != nil {
			handleGoalsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	case http.MethodPut:
		var in goals.GoalInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		goal, err := a.svc.UpdateGoal(r.Context(), id, in)
		if err != nil {
			handleGoalsError(w, r, err)
			return
		}
		a.publishGoalActivity(r.Context(), events.TypeGoalUpdated, goal.ID)
		writeJSON(w, http.StatusOK, goal)
	case http.MethodDelete:
		if err := a.svc.DeleteGoal(r.Context(), id); err != nil {
			handleGoalsError(w, r, err)
			return
		}
		a.publishGoalActivity(r.Context(), events.TypeGoalDeleted, id)
		_ = audit.LogEvent(r.Context(), "meta.delete", map[string]any{"metaId": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listGroupGoals(w http.ResponseWriter, r *http.Request) {
	groupID := strings.TrimSpace(r.URL.Query().Get("grupoId"))
	if groupID == "" {
		writeError(w, r, http.StatusBadRequest, "grupoId query parameter is required")
		return
	}
	list, err := a.svc.ListGroupGoals(r.Context(), groupID)
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createGoal(w http.ResponseWriter, r *http.Request) {
	var in goals.GoalInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	goal, err := a.svc.CreateGoal(r.Context(), in)
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}

	a.publishGoalActivity(r.Context(), events.TypeGoalCreated, goal.ID)
	_ = audit.LogEvent(r.Context(), "meta.create", map[string]any{"metaId": goal.ID})

	w.Header().Set("Location", "/v1/metas/"+goal.ID)
	writeJSON(w, http.StatusCreated, goal)
}

func (a *API) addSmallGoal(w http.ResponseWriter, r *http.Request, goalID string) {
	var req addSmallGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sg, err := a.svc.AddSmallGoal(r.Context(), goalID, req.Title)
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sg)
}

func (a *API) smallGoalByID(w http.ResponseWriter, r *http.Request, goalID, smallID string) {
	switch r.Method {
	case http.MethodPut:
		var patch goals.SmallGoalPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sg, err := a.svc.UpdateSmallGoal(r.Context(), goalID, smallID, patch)
		if err != nil {
			handleGoalsError(w, r, err)
			return
		}
		if patch.Status != nil {
			a.publishGoalActivity(r.Context(), events.TypeSmallGoalToggled, goalID)
		}
		writeJSON(w, http.StatusOK, sg)
	case http.MethodDelete:
		if err := a.svc.DeleteSmallGoal(r.Context(), goalID, smallID); err != nil {
			handleGoalsError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}
