package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dynamic-forms/internal/blob"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/engine/binder"
	"dynamic-forms/internal/engine/normalizer"
	"dynamic-forms/internal/engine/registry"
	"dynamic-forms/internal/engine/workflow"
	"dynamic-forms/internal/models"
	"dynamic-forms/internal/service"
	"dynamic-forms/internal/store"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logger.NewTestLogger(t)

	formStore := store.NewMemoryFormStore()
	subStore := store.NewMemorySubmissionStore()
	blobs := blob.NewLocalStoreFs(afero.NewMemMapFs(), "/uploads")
	reg := registry.New(nil)
	norm := normalizer.New(reg, binder.New(blobs), formStore, normalizer.DefaultConfig())

	router := NewRouter(Deps{
		Forms: service.NewFormService(formStore, subStore, nil, log),
		Submissions: service.NewSubmissionService(service.SubmissionDeps{
			Normalizer:  norm,
			Workflow:    workflow.New(subStore, log),
			Submissions: subStore,
			Forms:       formStore,
			PAN:         reg,
			Logger:      log,
		}),
		Blobs:          blobs,
		Logger:         log,
		AllowedOrigins: "http://localhost:3000",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

const intakeForm = `{
	"name": "Patient Intake",
	"category": "Healthcare",
	"fields": [
		{"id": "f1", "type": "text", "label": "Full Name", "required": true},
		{"id": "f2", "type": "select", "label": "Country", "options": ["India", "Nepal"]},
		{"id": "f3", "type": "file", "label": "Report"}
	]
}`

func createForm(t *testing.T, srv *httptest.Server) models.FormDefinition {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms", intakeForm)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var form models.FormDefinition
	decode(t, resp, &form)
	return form
}

type upload struct {
	field, name, content string
}

func submitMultipart(t *testing.T, url, data, formName string, files ...upload) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("data", data))
	if formName != "" {
		require.NoError(t, mw.WriteField("formName", formName))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

type submissionBody struct {
	ID       string                 `json:"id"`
	FormID   string                 `json:"formId"`
	FormName string                 `json:"formName"`
	Status   string                 `json:"status"`
	Data     map[string]interface{} `json:"data"`
}

// ==========================
// Form Routes
// ==========================

func TestFormRoutes(t *testing.T) {
	srv := newTestServer(t)
	form := createForm(t, srv)
	assert.NotEmpty(t, form.ID)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/forms/latest", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest models.FormDefinition
	decode(t, resp, &latest)
	assert.Equal(t, form.ID, latest.ID)

	replacement := strings.Replace(intakeForm, "Patient Intake", "Patient Intake v2", 1)
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/forms/"+form.ID, replacement)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replaced models.FormDefinition
	decode(t, resp, &replaced)
	assert.Equal(t, "Patient Intake v2", replaced.Name)
	assert.Equal(t, form.CreatedAt, replaced.CreatedAt)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/forms/"+form.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/forms/"+form.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "FORM_NOT_FOUND", body.Error)
}

func TestCreateForm_Invalid(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms", `{"name":"X","fields":[{"id":"a","type":"radio","label":"A"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "INVALID_FORM_DEFINITION", body.Error)
}

// ==========================
// Submission Routes
// ==========================

func TestSubmitMultipart_StoresAndServesFile(t *testing.T) {
	srv := newTestServer(t)
	form := createForm(t, srv)

	resp := submitMultipart(t, srv.URL+"/api/forms/"+form.ID+"/submissions",
		`{"Full Name":"Asha","Country":"Nepal"}`, "Intake (walk-in)",
		upload{field: "Report", name: "scan.txt", content: "blood work"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sub submissionBody
	decode(t, resp, &sub)
	assert.Equal(t, "pending", sub.Status)
	assert.Equal(t, "Intake (walk-in)", sub.FormName)
	assert.Equal(t, "Asha", sub.Data["Full Name"])

	report, ok := sub.Data["Report"].(map[string]interface{})
	require.True(t, ok, "report should be a file reference")
	url, _ := report["url"].(string)
	require.True(t, strings.HasPrefix(url, "/uploads/"), url)

	fileResp, err := http.Get(srv.URL + url)
	require.NoError(t, err)
	defer fileResp.Body.Close()
	assert.Equal(t, http.StatusOK, fileResp.StatusCode)
	content, _ := io.ReadAll(fileResp.Body)
	assert.Equal(t, "blood work", string(content))
}

func TestSubmitMultipart_IgnoresQueryFields(t *testing.T) {
	srv := newTestServer(t)
	form := createForm(t, srv)

	resp := submitMultipart(t, srv.URL+"/api/forms/"+form.ID+"/submissions?formName=Hacked&data=%7B%7D",
		`{"Full Name":"Asha","Country":"Nepal"}`, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sub submissionBody
	decode(t, resp, &sub)
	assert.Equal(t, "Patient Intake", sub.FormName)
	assert.Equal(t, "Asha", sub.Data["Full Name"])
}

func TestSubmit_ValidationFailure(t *testing.T) {
	srv := newTestServer(t)
	form := createForm(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms/"+form.ID+"/submissions?report=all",
		map[string]interface{}{"data": map[string]interface{}{"Country": "Bhutan"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "VALIDATION_FAILED", body.Error)
	assert.Equal(t, "Full Name is required", body.Message)
	assert.Len(t, body.Failures, 2)
}

func TestSubmit_MalformedData(t *testing.T) {
	srv := newTestServer(t)
	form := createForm(t, srv)

	resp := submitMultipart(t, srv.URL+"/api/forms/"+form.ID+"/submissions", `["not","an","object"]`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "MALFORMED_PAYLOAD", body.Error)
}

func TestSubmit_UnknownForm(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms/missing/submissions", `{"data":{}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestReviewRoutes(t *testing.T) {
	srv := newTestServer(t)
	form := createForm(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms/"+form.ID+"/submissions",
		map[string]interface{}{"data": map[string]interface{}{"Full Name": "Ravi"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sub submissionBody
	decode(t, resp, &sub)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/submissions/"+sub.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var approved submissionBody
	decode(t, resp, &approved)
	assert.Equal(t, "approved", approved.Status)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/submissions/"+sub.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)
	assert.Equal(t, "ALREADY_FINALIZED", body.Error)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/submissions?status=approved&formId="+form.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []submissionBody
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, sub.ID, list[0].ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/submissions?status=pending", nil)
	decode(t, resp, &list)
	assert.Empty(t, list)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/submissions/nope/approve", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSearch_DisabledIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/submissions/search?q=asha", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// ==========================
// Misc Routes
// ==========================

func TestVerifyPAN(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/verify-pan", map[string]string{"panNumber": "ABCDE1234F"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result service.PANResult
	decode(t, resp, &result)
	assert.True(t, result.Valid)
	assert.Equal(t, "PAN verified successfully", result.Message)

	tests := []struct {
		name    string
		body    map[string]string
		status  int
		valid   bool
		message string
	}{
		{"legacy pan key", map[string]string{"pan": "ABCDE1234F"}, http.StatusOK, true, "PAN verified successfully"},
		{"not in records", map[string]string{"panNumber": "QWERT1234Y"}, http.StatusBadRequest, false, "PAN not found in records"},
		{"bad format", map[string]string{"panNumber": "ABC123"}, http.StatusBadRequest, false, "PAN format invalid"},
		{"missing", map[string]string{}, http.StatusBadRequest, false, "PAN number is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/verify-pan", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			var result service.PANResult
			decode(t, resp, &result)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)
	form := createForm(t, srv)
	for _, name := range []string{"A", "B"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms/"+form.ID+"/submissions",
			map[string]interface{}{"data": map[string]interface{}{"Full Name": name}})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dash struct {
		TotalForms       int              `json:"totalForms"`
		TotalSubmissions int              `json:"totalSubmissions"`
		Recent           []submissionBody `json:"recentSubmissions"`
	}
	decode(t, resp, &dash)
	assert.Equal(t, 1, dash.TotalForms)
	assert.Equal(t, 2, dash.TotalSubmissions)
	assert.Len(t, dash.Recent, 2)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	notReady := NewRouter(Deps{
		Logger: logger.NewNoOpLogger(),
		Ready: func(context.Context) error {
			return stderrors.New("postgres down")
		},
	})
	rec := httptest.NewRecorder()
	notReady.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploads_Missing(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/uploads/does-not-exist.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/forms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	log := logger.NewNoOpLogger()
	h := recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
