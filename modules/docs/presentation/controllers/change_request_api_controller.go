package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/docflow/modules/docs/domain/changerequest"
	"github.com/iota-uz/docflow/modules/docs/services"
	"github.com/iota-uz/docflow/pkg/composables"
	"github.com/iota-uz/docflow/pkg/httpapi"
)

const maxListLimit = 200

// ChangeRequestAPIController exposes the change-request workflow under /api.
// Identity arrives from the gateway headers; the controller only verifies it
// is present and leaves authorization decisions to the services.
type ChangeRequestAPIController struct {
	requests *services.ChangeRequestService
	comments *services.CommentService
	basePath string
}

func NewChangeRequestAPIController(
	requests *services.ChangeRequestService,
	comments *services.CommentService,
) *ChangeRequestAPIController {
	return &ChangeRequestAPIController{
		requests: requests,
		comments: comments,
		basePath: "/api/document-change-requests",
	}
}

func (c *ChangeRequestAPIController) Key() string {
	return c.basePath
}

func (c *ChangeRequestAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()

	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("/stats", c.stats).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.update).Methods(http.MethodPut)
	router.HandleFunc("/{id}", c.delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/submit", c.submit).Methods(http.MethodPost)
	router.HandleFunc("/{id}/approve", c.approve).Methods(http.MethodPost)
	router.HandleFunc("/{id}/implement", c.implement).Methods(http.MethodPost)
	router.HandleFunc("/{id}/publish", c.publish).Methods(http.MethodPost)
	router.HandleFunc("/{id}/upload", c.upload).Methods(http.MethodPost)
	router.HandleFunc("/{id}/comments", c.listComments).Methods(http.MethodGet)
	router.HandleFunc("/{id}/comments", c.addComment).Methods(http.MethodPost)
	router.HandleFunc("/{id}/comments/{commentId}", c.editComment).Methods(http.MethodPut)
	router.HandleFunc("/{id}/comments/{commentId}", c.deleteComment).Methods(http.MethodDelete)
}

type changeRequestResponse struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	RequestType       string     `json:"request_type"`
	Priority          string     `json:"priority"`
	Justification     string     `json:"justification"`
	ImpactAnalysis    *string    `json:"impact_analysis,omitempty"`
	Observations      *string    `json:"observations,omitempty"`
	AffectedProcesses []string   `json:"affected_processes"`
	DocumentID        *string    `json:"document_id,omitempty"`
	FolderID          *string    `json:"folder_id,omitempty"`
	ProposedFile      *string    `json:"proposed_file,omitempty"`
	RequesterID       uuid.UUID  `json:"requester_id"`
	Status            string     `json:"status"`
	CurrentStep       int        `json:"current_step"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toChangeRequestResponse(cr *changerequest.ChangeRequest) *changeRequestResponse {
	return &changeRequestResponse{
		ID:                cr.ID,
		Title:             cr.Title,
		Description:       cr.Description,
		RequestType:       cr.RequestType,
		Priority:          cr.Priority,
		Justification:     cr.Justification,
		ImpactAnalysis:    cr.ImpactAnalysis,
		Observations:      cr.Observations,
		AffectedProcesses: cr.AffectedProcesses,
		DocumentID:        cr.DocumentID,
		FolderID:          cr.FolderID,
		ProposedFile:      cr.ProposedFile,
		RequesterID:       cr.RequesterID,
		Status:            cr.State.Status(),
		CurrentStep:       cr.State.Step(),
		CreatedAt:         cr.CreatedAt,
		UpdatedAt:         cr.UpdatedAt,
	}
}

type createChangeRequestBody struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	RequestType       string   `json:"request_type"`
	Priority          string   `json:"priority"`
	Justification     string   `json:"justification"`
	ImpactAnalysis    *string  `json:"impact_analysis"`
	Observations      *string  `json:"observations"`
	AffectedProcesses []string `json:"affected_processes"`
	DocumentID        *string  `json:"document_id"`
	FolderID          *string  `json:"folder_id"`
}

func (c *ChangeRequestAPIController) create(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	var body createChangeRequestBody
	if !c.decodeJSON(w, r, &body) {
		return
	}
	created, err := c.requests.Create(r.Context(), services.CreateChangeRequestParams{
		Title:             body.Title,
		Description:       body.Description,
		RequestType:       body.RequestType,
		Priority:          body.Priority,
		Justification:     body.Justification,
		ImpactAnalysis:    body.ImpactAnalysis,
		Observations:      body.Observations,
		AffectedProcesses: body.AffectedProcesses,
		DocumentID:        body.DocumentID,
		FolderID:          body.FolderID,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toChangeRequestResponse(created))
}

type listResponse struct {
	Items      []*changeRequestResponse `json:"items"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

func (c *ChangeRequestAPIController) list(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	q := r.URL.Query()
	filter := changerequest.Filter{
		Status:      q.Get("status"),
		RequestType: q.Get("requestType"),
		Priority:    q.Get("priority"),
		Limit:       50,
	}
	if raw := q.Get("requesterId"); raw != "" {
		requesterID, err := uuid.Parse(raw)
		if err != nil {
			c.writeAPIError(w, r, http.StatusBadRequest, services.CodeInvalidBody, "requesterId must be a uuid")
			return
		}
		filter.RequesterID = &requesterID
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			c.writeAPIError(w, r, http.StatusBadRequest, services.CodeInvalidBody,
				fmt.Sprintf("limit must be 1..%d", maxListLimit))
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("cursor"); raw != "" {
		updatedAt, id, err := parseCursor(raw)
		if err != nil {
			c.writeAPIError(w, r, http.StatusBadRequest, services.CodeInvalidBody, "malformed cursor")
			return
		}
		filter.CursorUpdatedAt = &updatedAt
		filter.CursorID = &id
	}

	rows, err := c.requests.List(r.Context(), filter)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	resp := listResponse{Items: make([]*changeRequestResponse, 0, len(rows))}
	for _, cr := range rows {
		resp.Items = append(resp.Items, toChangeRequestResponse(cr))
	}
	if len(rows) == filter.Limit {
		last := rows[len(rows)-1]
		resp.NextCursor = formatCursor(last.UpdatedAt, last.ID)
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ChangeRequestAPIController) stats(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	counts, err := c.requests.Stats(r.Context())
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

type detailResponse struct {
	Request   *changeRequestResponse          `json:"request"`
	Approvals []*changerequest.ApprovalRecord `json:"approvals"`
}

func (c *ChangeRequestAPIController) get(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	cr, approvals, err := c.requests.Get(r.Context(), id)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	if approvals == nil {
		approvals = []*changerequest.ApprovalRecord{}
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, detailResponse{
		Request:   toChangeRequestResponse(cr),
		Approvals: approvals,
	})
}

type updateChangeRequestBody struct {
	Title             *string  `json:"title"`
	Description       *string  `json:"description"`
	Priority          *string  `json:"priority"`
	Justification     *string  `json:"justification"`
	ImpactAnalysis    *string  `json:"impact_analysis"`
	Observations      *string  `json:"observations"`
	AffectedProcesses []string `json:"affected_processes"`
	DocumentID        *string  `json:"document_id"`
	FolderID          *string  `json:"folder_id"`
}

func (c *ChangeRequestAPIController) update(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	var body updateChangeRequestBody
	if !c.decodeJSON(w, r, &body) {
		return
	}
	updated, err := c.requests.UpdateDraft(r.Context(), id, services.UpdateChangeRequestParams{
		Title:             body.Title,
		Description:       body.Description,
		Priority:          body.Priority,
		Justification:     body.Justification,
		ImpactAnalysis:    body.ImpactAnalysis,
		Observations:      body.Observations,
		AffectedProcesses: body.AffectedProcesses,
		DocumentID:        body.DocumentID,
		FolderID:          body.FolderID,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toChangeRequestResponse(updated))
}

func (c *ChangeRequestAPIController) delete(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := c.requests.Delete(r.Context(), id); err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ChangeRequestAPIController) submit(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.requests.Submit)
}

func (c *ChangeRequestAPIController) implement(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.requests.BeginImplementation)
}

func (c *ChangeRequestAPIController) publish(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.requests.Publish)
}

type decideBody struct {
	StepNumber int    `json:"step_number"`
	Action     string `json:"action"`
	Comment    string `json:"comment"`
}

func (c *ChangeRequestAPIController) approve(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	var body decideBody
	if !c.decodeJSON(w, r, &body) {
		return
	}
	decided, err := c.requests.Decide(r.Context(), id, services.DecideParams{
		StepNumber: body.StepNumber,
		Action:     body.Action,
		Comment:    body.Comment,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toChangeRequestResponse(decided))
}

func (c *ChangeRequestAPIController) upload(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		c.writeAPIError(w, r, http.StatusBadRequest, services.CodeInvalidBody, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	bound, err := c.requests.AttachFile(r.Context(), id, header.Filename, file)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toChangeRequestResponse(bound))
}

type commentBody struct {
	Content string `json:"content"`
}

func (c *ChangeRequestAPIController) listComments(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	comments, err := c.comments.ListByRequest(r.Context(), id)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	if comments == nil {
		comments = []*changerequest.Comment{}
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": comments})
}

func (c *ChangeRequestAPIController) addComment(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	var body commentBody
	if !c.decodeJSON(w, r, &body) {
		return
	}
	comment, err := c.comments.Add(r.Context(), id, body.Content)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, comment)
}

func (c *ChangeRequestAPIController) editComment(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	commentID, ok := c.pathID(w, r, "commentId")
	if !ok {
		return
	}
	var body commentBody
	if !c.decodeJSON(w, r, &body) {
		return
	}
	comment, err := c.comments.Edit(r.Context(), commentID, body.Content)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, comment)
}

func (c *ChangeRequestAPIController) deleteComment(w http.ResponseWriter, r *http.Request) {
	if !c.requireActor(w, r) {
		return
	}
	commentID, ok := c.pathID(w, r, "commentId")
	if !ok {
		return
	}
	if err := c.comments.Delete(r.Context(), commentID); err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ChangeRequestAPIController) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error),
) {
	if !c.requireActor(w, r) {
		return
	}
	id, ok := c.pathID(w, r, "id")
	if !ok {
		return
	}
	cr, err := fn(r.Context(), id)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toChangeRequestResponse(cr))
}

func (c *ChangeRequestAPIController) requireActor(w http.ResponseWriter, r *http.Request) bool {
	if _, err := composables.UseActor(r.Context()); err != nil {
		c.writeAPIError(w, r, http.StatusUnauthorized, services.CodeNoActor, "caller identity is missing")
		return false
	}
	if _, err := composables.UseTenantID(r.Context()); err != nil {
		c.writeAPIError(w, r, http.StatusUnauthorized, services.CodeNoActor, "tenant is missing")
		return false
	}
	return true
}

func (c *ChangeRequestAPIController) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		c.writeAPIError(w, r, http.StatusBadRequest, services.CodeInvalidBody, name+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (c *ChangeRequestAPIController) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		c.writeAPIError(w, r, http.StatusBadRequest, services.CodeInvalidBody, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func (c *ChangeRequestAPIController) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		c.writeAPIError(w, r, svcErr.Status, svcErr.Code, svcErr.Message)
		return
	}
	composables.UseLogger(r.Context()).WithError(err).Error("unhandled service error")
	c.writeAPIError(w, r, http.StatusInternalServerError, services.CodeInternal, "internal error")
}

func (c *ChangeRequestAPIController) writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var meta map[string]string
	if requestID := composables.UseRequestID(r.Context()); requestID != "" {
		meta = map[string]string{"request_id": requestID}
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}

func formatCursor(updatedAt time.Time, id uuid.UUID) string {
	return fmt.Sprintf("updated_at:%s:id:%s", updatedAt.UTC().Format(time.RFC3339Nano), id)
}

func parseCursor(raw string) (time.Time, uuid.UUID, error) {
	rest, found := strings.CutPrefix(raw, "updated_at:")
	if !found {
		return time.Time{}, uuid.Nil, fmt.Errorf("missing updated_at segment")
	}
	idx := strings.LastIndex(rest, ":id:")
	if idx < 0 {
		return time.Time{}, uuid.Nil, fmt.Errorf("missing id segment")
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, rest[:idx])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(rest[idx+len(":id:"):])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return updatedAt, id, nil
}
