package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/docflow/modules/docs/infrastructure/persistence"
	"github.com/iota-uz/docflow/modules/docs/presentation/controllers"
	"github.com/iota-uz/docflow/modules/docs/services"
	"github.com/iota-uz/docflow/pkg/composables"
	"github.com/iota-uz/docflow/pkg/itf"
	"github.com/iota-uz/docflow/pkg/middleware"
)

type stubStorage struct{}

func (stubStorage) Save(_ context.Context, filename string, content io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return "", err
	}
	return uuid.NewString() + "-" + filename, nil
}

type apiFixture struct {
	router    *mux.Router
	tenantID  uuid.UUID
	requester composables.Actor
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo := persistence.NewInmemChangeRequestRepository()
	requestService := services.NewChangeRequestService(
		repo,
		persistence.NewInmemApprovalRepository(),
		stubStorage{},
		nil,
		nil,
	)
	commentService := services.NewCommentService(persistence.NewInmemCommentRepository(), repo)

	router := mux.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.ProvideActor(),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(composables.WithTx(r.Context(), itf.NoopTx{})))
			})
		},
	)
	controllers.NewChangeRequestAPIController(requestService, commentService).Register(router)

	return &apiFixture{
		router:    router,
		tenantID:  uuid.New(),
		requester: composables.Actor{ID: uuid.New(), Role: "solicitante"},
	}
}

func (f *apiFixture) do(t *testing.T, actor *composables.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != nil {
		req.Header.Set("X-Tenant-ID", f.tenantID.String())
		req.Header.Set("X-User-ID", actor.ID.String())
		req.Header.Set("X-User-Role", actor.Role)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) asRole(role string) *composables.Actor {
	return &composables.Actor{ID: uuid.New(), Role: role}
}

func createBody() map[string]any {
	return map[string]any{
		"title":         "Actualizar formato de registro",
		"description":   "El formato vigente omite el campo de lote",
		"request_type":  "edit",
		"priority":      "alta",
		"justification": "Hallazgo de la ultima auditoria interna",
		"document_id":   "DOC-42",
	}
}

func (f *apiFixture) createRequest(t *testing.T) map[string]any {
	t.Helper()
	rec := f.do(t, &f.requester, http.MethodPost, "/api/document-change-requests", createBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChangeRequestAPI_Create(t *testing.T) {
	t.Parallel()

	t.Run("creates a draft", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)
		assert.Equal(t, "borrador", created["status"])
		assert.Equal(t, float64(1), created["current_step"])
		assert.Equal(t, f.requester.ID.String(), created["requester_id"])
	})

	t.Run("rejects unknown body fields", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		body := createBody()
		body["status"] = "publicado"
		rec := f.do(t, &f.requester, http.MethodPost, "/api/document-change-requests", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an invalid target combination", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		body := createBody()
		body["folder_id"] = "F9"
		rec := f.do(t, &f.requester, http.MethodPost, "/api/document-change-requests", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, services.CodeInvalidField, decodeBody(t, rec)["code"])
	})

	t.Run("requires identity headers", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		rec := f.do(t, nil, http.MethodPost, "/api/document-change-requests", createBody())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, services.CodeNoActor, body["code"])
		assert.NotEmpty(t, body["meta"].(map[string]any)["request_id"])
	})
}

func TestChangeRequestAPI_Workflow(t *testing.T) {
	t.Parallel()

	t.Run("drives a request from draft to rejection", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)
		id := created["id"].(string)
		base := "/api/document-change-requests/" + id

		rec := f.do(t, &f.requester, http.MethodPost, base+"/submit", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "pendiente_revision", decodeBody(t, rec)["status"])

		// Wrong step number conflicts instead of silently applying.
		rec = f.do(t, f.asRole("calidad"), http.MethodPost, base+"/approve", map[string]any{
			"step_number": 4, "action": "approve", "comment": "conforme",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, services.CodeStepConflict, decodeBody(t, rec)["code"])

		rec = f.do(t, f.asRole("calidad"), http.MethodPost, base+"/approve", map[string]any{
			"step_number": 2, "action": "approve", "comment": "conforme",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "en_revision", decodeBody(t, rec)["status"])

		// A step role outside the table cannot decide step three.
		rec = f.do(t, f.asRole("calidad"), http.MethodPost, base+"/approve", map[string]any{
			"step_number": 3, "action": "approve", "comment": "conforme",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, f.asRole("jefe_departamento"), http.MethodPost, base+"/approve", map[string]any{
			"step_number": 3, "action": "reject", "comment": "no procede",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		rejected := decodeBody(t, rec)
		assert.Equal(t, "rechazado", rejected["status"])
		assert.Equal(t, float64(3), rejected["current_step"])

		rec = f.do(t, f.asRole("admin"), http.MethodPost, base+"/approve", map[string]any{
			"step_number": 3, "action": "approve", "comment": "tarde",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, services.CodeTerminal, decodeBody(t, rec)["code"])
	})

	t.Run("detail includes the approval trail", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)
		id := created["id"].(string)
		base := "/api/document-change-requests/" + id

		rec := f.do(t, &f.requester, http.MethodPost, base+"/submit", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, &f.requester, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		detail := decodeBody(t, rec)
		approvals := detail["approvals"].([]any)
		require.Len(t, approvals, 1)
		first := approvals[0].(map[string]any)
		assert.Equal(t, "submit", first["action"])
		assert.Equal(t, float64(1), first["step_number"])
	})

	t.Run("unknown id is a 404, malformed id a 400", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		rec := f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("draft delete returns no content", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)
		rec := f.do(t, &f.requester, http.MethodDelete, "/api/document-change-requests/"+created["id"].(string), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestChangeRequestAPI_List(t *testing.T) {
	t.Parallel()

	t.Run("paginates with a cursor", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		for i := 0; i < 3; i++ {
			f.createRequest(t)
		}

		rec := f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests?limit=2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decodeBody(t, rec)
		require.Len(t, page["items"].([]any), 2)
		cursor := page["next_cursor"].(string)
		require.NotEmpty(t, cursor)

		rec = f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests?limit=2&cursor="+cursor, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rest := decodeBody(t, rec)
		assert.Len(t, rest["items"].([]any), 1)

		seen := map[string]bool{}
		for _, item := range append(page["items"].([]any), rest["items"].([]any)...) {
			seen[item.(map[string]any)["id"].(string)] = true
		}
		assert.Len(t, seen, 3)
	})

	t.Run("rejects an out-of-range limit", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		rec := f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests?limit=500", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a malformed cursor", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		rec := f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests?cursor=garbage", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("filters by status", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)
		f.createRequest(t)
		rec := f.do(t, &f.requester, http.MethodPost,
			"/api/document-change-requests/"+created["id"].(string)+"/submit", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests?status=pendiente_revision", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decodeBody(t, rec)
		require.Len(t, page["items"].([]any), 1)
	})

	t.Run("stats reports counts by status", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		f.createRequest(t)
		f.createRequest(t)

		rec := f.do(t, &f.requester, http.MethodGet, "/api/document-change-requests/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		counts := decodeBody(t, rec)["counts"].(map[string]any)
		assert.Equal(t, float64(2), counts["borrador"])
	})
}

func TestChangeRequestAPI_Upload(t *testing.T) {
	t.Parallel()

	t.Run("attaches a multipart file", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", "propuesta.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 contenido"))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost,
			"/api/document-change-requests/"+created["id"].(string)+"/upload", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("X-Tenant-ID", f.tenantID.String())
		req.Header.Set("X-User-ID", f.requester.ID.String())
		req.Header.Set("X-User-Role", f.requester.Role)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		bound := decodeBody(t, rec)
		assert.Contains(t, bound["proposed_file"], "propuesta.pdf")
	})

	t.Run("missing file field is a 400", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)
		rec := f.do(t, &f.requester, http.MethodPost,
			"/api/document-change-requests/"+created["id"].(string)+"/upload", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChangeRequestAPI_Comments(t *testing.T) {
	t.Parallel()

	t.Run("full comment lifecycle", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t)
		created := f.createRequest(t)
		base := fmt.Sprintf("/api/document-change-requests/%s/comments", created["id"])

		rec := f.do(t, &f.requester, http.MethodPost, base, map[string]any{"content": "primer comentario"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		comment := decodeBody(t, rec)
		commentID := comment["id"].(string)

		rec = f.do(t, &f.requester, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, decodeBody(t, rec)["items"].([]any), 1)

		rec = f.do(t, &f.requester, http.MethodPut, base+"/"+commentID, map[string]any{"content": "corregido"})
		require.Equal(t, http.StatusOK, rec.Code)
		edited := decodeBody(t, rec)
		assert.Equal(t, "corregido", edited["content"])
		assert.NotNil(t, edited["edited_at"])

		// Another user cannot touch it.
		rec = f.do(t, f.asRole("calidad"), http.MethodDelete, base+"/"+commentID, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, &f.requester, http.MethodDelete, base+"/"+commentID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, &f.requester, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody(t, rec)["items"])
	})
}
