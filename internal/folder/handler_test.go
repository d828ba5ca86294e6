package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliancedocs/internal/folder/model"
	"compliancedocs/internal/folder/repository"
	"compliancedocs/internal/folder/service"
	"compliancedocs/internal/folder/template"
	"compliancedocs/middleware"
)

func newTestRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	svc := service.NewFolderService(repository.NewFolderRepository(db), template.NewRegistry(), service.RoleAuthorizer{}, nil)
	h := NewFolderHandler(svc)

	asActor := func(actor model.Actor, next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	contributor := model.Actor{ID: "user-1", Role: model.RoleContributor}
	reviewer := model.Actor{ID: "rev-1", Role: model.RoleReviewer}

	r := mux.NewRouter()
	r.Handle("/api/folders", asActor(contributor, h.ScaffoldFolder)).Methods(http.MethodPost)
	r.Handle("/api/folders/{folderId}", asActor(contributor, h.GetFolder)).Methods(http.MethodGet)
	r.Handle("/api/documents/{documentId}/review", asActor(reviewer, h.ReviewDocument)).Methods(http.MethodPost)

	return r, mock, func() { db.Close() }
}

func TestGetFolderEndpoint(t *testing.T) {
	router, mock, cleanup := newTestRouter(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("FROM folders WHERE id =").
		WithArgs("F1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "root_kind", "root_id", "category", "status", "version",
			"submitted_at", "approved_at", "rejection_notes", "created_at", "updated_at",
		}).AddRow("F1", "vehicle", "V1", "VEHICLES", "DRAFT", int64(1), nil, nil, "", now, now))
	mock.ExpectQuery("FROM documents WHERE folder_id").
		WithArgs("F1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "folder_id", "type", "name", "required", "artifact_ref",
			"expiration_date", "status", "review_notes", "reviewed_by", "reviewed_at",
		}).AddRow("D1", "F1", "REG", "Vehicle registration", true, "", nil, "EMPTY", "", "", nil))

	req := httptest.NewRequest(http.MethodGet, "/api/folders/F1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var detail model.FolderDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "F1", detail.Folder.ID)
	require.Len(t, detail.Documents, 1)
	assert.Equal(t, model.DocEmpty, detail.Documents[0].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFolderEndpointNotFound(t *testing.T) {
	router, mock, cleanup := newTestRouter(t)
	defer cleanup()

	mock.ExpectQuery("FROM folders WHERE id =").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/folders/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestReviewEndpointRejectionWithoutNotes(t *testing.T) {
	router, mock, cleanup := newTestRouter(t)
	defer cleanup()

	body := strings.NewReader(`{"decision":"REJECTED","notes":""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/D1/review", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScaffoldEndpointUnknownCategory(t *testing.T) {
	router, mock, cleanup := newTestRouter(t)
	defer cleanup()

	body := strings.NewReader(`{"root_kind":"vehicle","root_id":"V1","category":"EQUIPMENT"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/folders", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_category")
	assert.NoError(t, mock.ExpectationsWereMet())
}
