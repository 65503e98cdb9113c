package cspreport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
)

// OpenSearchConfig holds connection settings for OpenSearchStore.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string
}

// OpenSearchStore indexes reports into "<prefix>-csp-reports".
type OpenSearchStore struct {
	client *opensearch.Client
	index  string
}

// NewOpenSearchClient builds a client from cfg without contacting the cluster.
func NewOpenSearchClient(cfg OpenSearchConfig) (*opensearch.Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return client, nil
}

func NewOpenSearchStore(client *opensearch.Client, indexPrefix string) *OpenSearchStore {
	return &OpenSearchStore{
		client: client,
		index:  indexPrefix + "-csp-reports",
	}
}

// Ping verifies the cluster is reachable.
func (s *OpenSearchStore) Ping(ctx context.Context) error {
	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch returned error: %s", res.Status())
	}
	return nil
}

func (s *OpenSearchStore) Save(ctx context.Context, report StoredReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(report.Filename),
	)
	if err != nil {
		return fmt.Errorf("failed to index report: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("opensearch error: %s - %s", res.Status(), string(data))
	}
	return nil
}

// List searches newest first. A missing index yields an empty list and
// malformed hits are skipped.
func (s *OpenSearchStore) List(ctx context.Context, limit int) ([]StoredReport, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"size":  limit,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search reports: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []StoredReport{}, nil
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("opensearch error: %s - %s", res.Status(), string(data))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	reports := make([]StoredReport, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var report StoredReport
		if err := json.Unmarshal(hit.Source, &report); err != nil {
			slog.WarnContext(ctx, "skipping malformed CSP report hit", slog.String("id", hit.ID), slog.String("error", err.Error()))
			continue
		}
		if report.Filename == "" {
			report.Filename = hit.ID
		}
		reports = append(reports, report)
	}
	return reports, nil
}
