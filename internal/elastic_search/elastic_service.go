package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	esDoc "movies-etl/internal/types/elastic"
	myErr "movies-etl/internal/types/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 100
	// maxLoggedFailures - сколько отклоненных документов логируется подробно
	maxLoggedFailures = 5
)

type ElasticService struct {
	Client    *elasticsearch.Client
	Logger    *zap.SugaredLogger
	Index     string
	BatchSize int
}

func NewService(client *elasticsearch.Client, logger *zap.SugaredLogger, index string, batchSize int) *ElasticService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ElasticService{
		Client:    client,
		Logger:    logger,
		Index:     index,
		BatchSize: batchSize,
	}
}

type bulkResponse struct {
	Errors bool                          `json:"errors"`
	Items  []map[string]bulkResponseItem `json:"items"`
}

type bulkResponseItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// BulkIndex - записывает документы в индекс пачками по BatchSize.
// Документ полностью заменяет ранее записанный с тем же id.
// Возвращает число принятых документов. Если в пачке есть отклоненные документы,
// запись останавливается и возвращается *BulkError.
func (s *ElasticService) BulkIndex(ctx context.Context, docs []esDoc.SearchDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	succeeded := 0
	for start := 0; start < len(docs); start += s.BatchSize {
		end := min(start+s.BatchSize, len(docs))

		ok, failures, err := s.bulk(ctx, docs[start:end])
		succeeded += ok
		if err != nil {
			return succeeded, err
		}

		if len(failures) > 0 {
			for i, f := range failures {
				if i == maxLoggedFailures {
					s.Logger.Errorw("More documents rejected", "count", len(failures)-maxLoggedFailures)
					break
				}
				s.Logger.Errorw("Document rejected by bulk request",
					"doc_id", f.DocumentID,
					"status", f.Status,
					"reason", f.Reason,
				)
			}

			return succeeded, &myErr.BulkError{
				Succeeded: succeeded,
				Failed:    len(failures),
				Failures:  failures,
			}
		}
	}

	s.Logger.Infow("Bulk indexing completed", "index", s.Index, "count", succeeded)

	return succeeded, nil
}

func (s *ElasticService) bulk(ctx context.Context, docs []esDoc.SearchDocument) (int, []myErr.BulkFailure, error) {
	var buf bytes.Buffer

	for _, doc := range docs {
		meta := map[string]map[string]string{
			"index": {
				"_index": s.Index,
				"_id":    doc.ID,
			},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			s.Logger.Errorw("Failed to marshal bulk meta", zap.Error(err))
			return 0, nil, err
		}

		docLine, err := json.Marshal(doc)
		if err != nil {
			s.Logger.Errorw("Failed to marshal doc", zap.Error(err), "doc_id", doc.ID)
			return 0, nil, err
		}

		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := s.Client.Bulk(bytes.NewReader(buf.Bytes()), s.Client.Bulk.WithContext(ctx))
	if err != nil {
		s.Logger.Errorw("Bulk request failed", zap.Error(err))
		return 0, nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		s.Logger.Errorw("Bulk indexing returned error", zap.String("response", res.String()))
		return 0, nil, myErr.ErrIndexing
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		s.Logger.Errorw("Failed to decode bulk response", zap.Error(err))
		return 0, nil, err
	}

	if !parsed.Errors {
		return len(docs), nil, nil
	}

	var failures []myErr.BulkFailure
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error == nil && result.Status < http.StatusBadRequest {
				continue
			}

			failure := myErr.BulkFailure{DocumentID: result.ID, Status: result.Status}
			if result.Error != nil {
				failure.Reason = result.Error.Type + ": " + result.Error.Reason
			}
			failures = append(failures, failure)
		}
	}

	return len(docs) - len(failures), failures, nil
}

// EnsureIndex - создает индекс с маппингом кинопроизведений, если его еще нет.
// Маппинг существующего индекса не меняется.
func (s *ElasticService) EnsureIndex(ctx context.Context) error {
	res, err := s.Client.Indices.Exists([]string{s.Index}, s.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		s.Logger.Errorw("Failed to check if index exists", zap.Error(err))
		return err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		s.Logger.Infof("Index '%s' already exists", s.Index)
		return nil
	case http.StatusNotFound:
	default:
		s.Logger.Errorw("Unexpected response while checking index", zap.String("response", res.String()))
		return myErr.ErrIndexing
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(IndexBody()); err != nil {
		s.Logger.Errorw("Failed to encode index settings", zap.Error(err))
		return err
	}

	createRes, err := s.Client.Indices.Create(s.Index,
		s.Client.Indices.Create.WithContext(ctx),
		s.Client.Indices.Create.WithBody(&buf),
	)
	if err != nil {
		s.Logger.Errorw("Failed to create index", zap.Error(err))
		return err
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		s.Logger.Errorw("Elasticsearch index creation error", zap.String("response", createRes.String()))
		return myErr.ErrIndexing
	}

	s.Logger.Infof("Index '%s' created successfully", s.Index)
	return nil
}

// IndexBody - настройки и маппинг индекса кинопроизведений
func IndexBody() map[string]interface{} {
	text := map[string]interface{}{
		"type":     "text",
		"analyzer": "ru_en",
	}
	personRefs := map[string]interface{}{
		"type":    "nested",
		"dynamic": "strict",
		"properties": map[string]interface{}{
			"id":   map[string]interface{}{"type": "keyword"},
			"name": text,
		},
	}

	return map[string]interface{}{
		"settings": map[string]interface{}{
			"refresh_interval": "1s",
			"analysis": map[string]interface{}{
				"filter": map[string]interface{}{
					"english_stop":               map[string]interface{}{"type": "stop", "stopwords": "_english_"},
					"english_stemmer":            map[string]interface{}{"type": "stemmer", "language": "english"},
					"english_possessive_stemmer": map[string]interface{}{"type": "stemmer", "language": "possessive_english"},
					"russian_stop":               map[string]interface{}{"type": "stop", "stopwords": "_russian_"},
					"russian_stemmer":            map[string]interface{}{"type": "stemmer", "language": "russian"},
				},
				"analyzer": map[string]interface{}{
					"ru_en": map[string]interface{}{
						"tokenizer": "standard",
						"filter": []string{
							"lowercase",
							"english_stop",
							"english_stemmer",
							"english_possessive_stemmer",
							"russian_stop",
							"russian_stemmer",
						},
					},
				},
			},
		},
		"mappings": map[string]interface{}{
			"dynamic": "strict",
			"properties": map[string]interface{}{
				"id":     map[string]interface{}{"type": "keyword"},
				"rating": map[string]interface{}{"type": "float"},
				"type":   map[string]interface{}{"type": "keyword"},
				"genres": map[string]interface{}{"type": "keyword"},
				"title": map[string]interface{}{
					"type":     "text",
					"analyzer": "ru_en",
					"fields": map[string]interface{}{
						"raw": map[string]interface{}{"type": "keyword"},
					},
				},
				"description":     text,
				"actors_names":    text,
				"directors_names": text,
				"writers_names":   text,
				"actors":          personRefs,
				"directors":       personRefs,
				"writers":         personRefs,
			},
		},
	}
}
