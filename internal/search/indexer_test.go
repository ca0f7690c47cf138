package search

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Body   string
}

func newFakeES(t *testing.T, respond func(r *http.Request) (int, string)) (*elasticsearch.Client, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		mu.Unlock()

		status, payload := respond(r)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	return client, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func sampleSubmission() *models.Submission {
	return &models.Submission{
		ID:       "s1",
		FormID:   "f1",
		FormName: "Intake",
		Entries: []models.Entry{
			{FieldID: "n", Label: "Name", Value: models.StringValue("Ravi Kumar")},
			{FieldID: "a", Label: "Age", Value: models.NumberValue(33)},
			{FieldID: "t", Label: "Topics", Value: models.StringsValue([]string{"loans", "cards"})},
			{FieldID: "d", Label: "Proof", Value: models.FileValue(&models.FileReference{OriginalName: "aadhaar.pdf"})},
		},
		SubmittedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:      models.StatusPending,
	}
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument(sampleSubmission())

	assert.Equal(t, "s1", doc.ID)
	assert.Equal(t, "pending", doc.Status)
	assert.Equal(t, "Ravi Kumar loans cards aadhaar.pdf", doc.Text)
	assert.Equal(t, 33.0, doc.Data["Age"])
}

func TestIndexer_IndexAndUpdate(t *testing.T) {
	client, calls := newFakeES(t, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"result":"created"}`
	})
	ix := NewIndexer(client, "submissions")
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, sampleSubmission()))

	sub := sampleSubmission()
	sub.Status = models.StatusApproved
	require.NoError(t, ix.SubmissionTransitioned(ctx, sub, models.StatusPending))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPut, got[0].Method)
	assert.Equal(t, "/submissions/_doc/s1", got[0].Path)

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(got[0].Body), &doc))
	assert.Equal(t, "Intake", doc.FormName)

	assert.Equal(t, "/submissions/_update/s1", got[1].Path)
	assert.JSONEq(t, `{"doc":{"status":"approved"}}`, got[1].Body)
}

func TestIndexer_DeleteByForm(t *testing.T) {
	client, calls := newFakeES(t, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"deleted":3}`
	})
	ix := NewIndexer(client, "submissions")

	require.NoError(t, ix.DeleteByForm(context.Background(), "f1"))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/submissions/_delete_by_query", got[0].Path)
	assert.JSONEq(t, `{"query":{"term":{"formId":"f1"}}}`, got[0].Body)
}

func TestIndexer_Search(t *testing.T) {
	client, calls := newFakeES(t, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"s1","formId":"f1","status":"pending","text":"Ravi"}}]}}`
	})
	ix := NewIndexer(client, "submissions")

	res, err := ix.Search(context.Background(), Query{Text: "ravi", FormID: "f1", Status: models.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "s1", res.Documents[0].ID)

	got := calls()
	require.Len(t, got, 1)
	assert.True(t, strings.HasSuffix(got[0].Path, "/submissions/_search"))
	assert.Contains(t, got[0].Body, `"match":{"text":"ravi"}`)
	assert.Contains(t, got[0].Body, `"size":20`)
}

func TestIndexer_ErrorResponses(t *testing.T) {
	client, _ := newFakeES(t, func(r *http.Request) (int, string) {
		return http.StatusServiceUnavailable, `{"error":"unavailable"}`
	})
	ix := NewIndexer(client, "submissions")
	ctx := context.Background()

	err := ix.Index(ctx, sampleSubmission())
	assert.Equal(t, errors.ErrCodeSearchIndexFailed, errors.CodeOf(err))

	err = ix.UpdateStatus(ctx, "s1", models.StatusRejected)
	assert.Equal(t, errors.ErrCodeSearchIndexFailed, errors.CodeOf(err))

	_, err = ix.Search(ctx, Query{})
	var stdErr *errors.StandardError
	assert.True(t, stderrors.As(err, &stdErr))
}
