// Package search mirrors submissions into Elasticsearch for full-text
// lookup. The submission store stays the source of truth.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// Mapping is the index mapping for submission documents.
const Mapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "formId":      {"type": "keyword"},
      "formName":    {"type": "keyword"},
      "status":      {"type": "keyword"},
      "submittedAt": {"type": "date"},
      "text":        {"type": "text"},
      "data":        {"type": "object", "enabled": false}
    }
  }
}`

// Document is the indexed form of a submission.
type Document struct {
	ID          string                 `json:"id"`
	FormID      string                 `json:"formId"`
	FormName    string                 `json:"formName"`
	Status      string                 `json:"status"`
	SubmittedAt time.Time              `json:"submittedAt"`
	Text        string                 `json:"text"`
	Data        map[string]interface{} `json:"data"`
}

// NewDocument flattens a submission. Text joins every string value and
// attachment name so they are searchable together.
func NewDocument(sub *models.Submission) Document {
	data := make(map[string]interface{}, len(sub.Entries))
	var text []string
	for _, e := range sub.Entries {
		data[e.Label] = e.Value.Interface()
		switch e.Value.Kind {
		case models.ValueString:
			text = append(text, e.Value.Str)
		case models.ValueStrings:
			text = append(text, e.Value.Strings...)
		case models.ValueFile:
			if e.Value.File != nil {
				text = append(text, e.Value.File.OriginalName)
			}
		}
	}
	return Document{
		ID:          sub.ID,
		FormID:      sub.FormID,
		FormName:    sub.FormName,
		Status:      string(sub.Status),
		SubmittedAt: sub.SubmittedAt,
		Text:        strings.Join(text, " "),
		Data:        data,
	}
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

func (ix *Indexer) Index(ctx context.Context, sub *models.Submission) error {
	body, err := json.Marshal(NewDocument(sub))
	if err != nil {
		return errors.NewSearchIndexFailedError("index", err)
	}

	res, err := ix.client.Index(ix.index, bytes.NewReader(body),
		ix.client.Index.WithContext(ctx),
		ix.client.Index.WithDocumentID(sub.ID),
	)
	if err != nil {
		return errors.NewSearchIndexFailedError("index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewSearchIndexFailedError("index", fmt.Errorf("%s", res.Status()))
	}
	return nil
}

func (ix *Indexer) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	body := fmt.Sprintf(`{"doc":{"status":%q}}`, string(status))

	res, err := ix.client.Update(ix.index, id, strings.NewReader(body),
		ix.client.Update.WithContext(ctx),
	)
	if err != nil {
		return errors.NewSearchIndexFailedError("update status", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewSearchIndexFailedError("update status", fmt.Errorf("%s", res.Status()))
	}
	return nil
}

// SubmissionTransitioned keeps the indexed status in step with the store.
func (ix *Indexer) SubmissionTransitioned(ctx context.Context, sub *models.Submission, _ models.SubmissionStatus) error {
	return ix.UpdateStatus(ctx, sub.ID, sub.Status)
}

func (ix *Indexer) DeleteByForm(ctx context.Context, formID string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"formId": formID},
		},
	}
	body, _ := json.Marshal(query)

	res, err := ix.client.DeleteByQuery([]string{ix.index}, bytes.NewReader(body),
		ix.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return errors.NewSearchIndexFailedError("delete by form", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewSearchIndexFailedError("delete by form", fmt.Errorf("%s", res.Status()))
	}
	return nil
}

// Query is a full-text search over submissions with optional filters.
type Query struct {
	Text   string
	FormID string
	Status models.SubmissionStatus
	From   int
	Size   int
}

type Result struct {
	Total     int64      `json:"total"`
	Documents []Document `json:"documents"`
}

func (ix *Indexer) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Size <= 0 || q.Size > 100 {
		q.Size = 20
	}

	var must []interface{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"text": q.Text},
		})
	}
	var filter []interface{}
	if q.FormID != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"formId": q.FormID}})
	}
	if q.Status != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"status": string(q.Status)}})
	}

	body, _ := json.Marshal(map[string]interface{}{
		"from": q.From,
		"size": q.Size,
		"sort": []interface{}{map[string]interface{}{"submittedAt": "desc"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filter},
		},
	})

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.index),
		ix.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.NewSearchIndexFailedError("search", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, errors.NewSearchIndexFailedError("search", fmt.Errorf("%s: %s", res.Status(), msg))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchIndexFailedError("decode search", err)
	}

	out := &Result{Total: r.Hits.Total.Value, Documents: make([]Document, 0, len(r.Hits.Hits))}
	for _, h := range r.Hits.Hits {
		out.Documents = append(out.Documents, h.Source)
	}
	return out, nil
}
