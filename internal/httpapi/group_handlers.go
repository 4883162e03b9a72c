package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"goalboard.org/internal/audit"
	"goalboard.org/internal/auth"
	"goalboard.org/internal/events"
	"goalboard.org/internal/goals"
)

type createGroupRequest struct {
	Name        string `json:"nome"`
	Description string `json:"descricao,omitempty"`
}

type joinGroupRequest struct {
	InviteCode string `json:"codigoConvite"`
}

func (a *API) handleGroupsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listGroups(w, r)
	case http.MethodPost:
		a.createGroup(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleGroupJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req joinGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	group, err := a.svc.JoinGroup(r.Context(), req.InviteCode)
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}

	if actor, ok := auth.UserIDFromContext(r.Context()); ok {
		a.publish(events.Event{
			GroupID: group.ID,
			Type:    events.TypeMemberJoined,
			ActorID: actor,
		})
	}
	_ = audit.LogEvent(r.Context(), "group.join", map[string]any{
		"grupoId": group.ID,
	})

	writeJSON(w, http.StatusOK, group)
}

func (a *API) handleGroupResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/groups/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/events"); ok && !strings.Contains(id, "/") && id != "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.streamGroupEvents(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getGroup(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListGroups(r.Context())
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	group, err := a.svc.CreateGroup(r.Context(), req.Name, req.Description)
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "group.create", map[string]any{
		"grupoId": group.ID,
	})

	w.Header().Set("Location", "/v1/groups/"+group.ID)
	writeJSON(w, http.StatusCreated, group)
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request, id string) {
	group, err := a.svc.GetGroup(r.Context(), id)
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// streamGroupEvents handles Server-Sent Events for the group activity feed.
func (a *API) streamGroupEvents(w http.ResponseWriter, r *http.Request, groupID string) {
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	group, err := a.svc.GetGroup(r.Context(), groupID)
	if err != nil {
		handleGoalsError(w, r, err)
		return
	}
	actor, ok := auth.UserIDFromContext(r.Context())
	if !ok || goals.CanRedeemInvite(group, actor) {
		// Only members may watch a group's feed.
		writeError(w, r, http.StatusForbidden, "not a group member")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx, groupID)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func (a *API) publish(evt events.Event) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(evt)
}

// publishGoalActivity fans a goal mutation out to every group the actor
// belongs to, so each shared board sees the change.
func (a *API) publishGoalActivity(ctx context.Context, typ events.Type, goalID string) {
	if a.stream == nil {
		return
	}
	actor, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return
	}
	list, err := a.svc.ListGroups(ctx)
	if err != nil {
		return
	}
	for _, group := range list {
		a.publish(events.Event{
			GroupID: group.ID,
			Type:    typ,
			ActorID: actor,
			GoalID:  goalID,
		})
	}
}
