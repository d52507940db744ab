// Package service implements the dataset forwarding logic.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"

	"dataset-proxy-go/internal/config"
	"dataset-proxy-go/internal/metrics"
	"dataset-proxy-go/internal/model"
)

// datasetPath is the backend endpoint that serves datasets.
const datasetPath = "/fs/dataset"

// DefaultNamespace is sent when the caller gives no namespace.
const DefaultNamespace = "default"

// forwardedParams are copied to the backend in this order, only when present.
var forwardedParams = []string{
	"dataset_url",
	"source_version_id",
	"project_id",
	"subset",
	"env",
}

// Fetcher issues the outbound GET. *client.BackendClient implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*model.UpstreamResponse, error)
}

// DatasetService forwards dataset requests to the backend.
type DatasetService struct {
	client  Fetcher
	backend *config.BackendConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewDatasetService creates a DatasetService.
// The metrics parameter is optional; pass nil to disable error counting.
func NewDatasetService(c Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *DatasetService {
	return &DatasetService{
		client:  c,
		backend: &cfg.Backend,
		logger:  logger.With("component", "dataset_service"),
		metrics: m,
	}
}

// Fetch loads a dataset from the backend and returns its JSON body unmodified.
// Any failure is returned as a *FetchError.
//
// The outbound call does not follow the inbound request's cancellation.
func (s *DatasetService) Fetch(ctx context.Context, inbound url.Values) (json.RawMessage, error) {
	target := s.TargetURL(BuildQuery(inbound))

	s.logger.Debug("fetching dataset", "url", target)

	resp, err := s.client.Get(context.WithoutCancel(ctx), target)
	if err != nil {
		return nil, s.fail(transportError(err))
	}

	if !resp.OK() {
		return nil, s.fail(statusError(resp.StatusCode, resp.Body))
	}

	var body json.RawMessage
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, s.fail(decodeError(err))
	}

	return body, nil
}

// TargetURL returns the backend dataset URL for the given query. The base
// URL is resolved on every call.
func (s *DatasetService) TargetURL(q model.QueryParams) string {
	return s.backend.BaseURL() + datasetPath + "?" + q.Encode()
}

// BuildQuery copies the forwarded parameters that are present and non-empty,
// then appends namespace, falling back to DefaultNamespace.
func BuildQuery(inbound url.Values) model.QueryParams {
	q := make(model.QueryParams, 0, len(forwardedParams)+1)
	for _, key := range forwardedParams {
		if v := inbound.Get(key); v != "" {
			q.Add(key, v)
		}
	}

	namespace := inbound.Get("namespace")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	q.Add("namespace", namespace)

	return q
}

func (s *DatasetService) fail(err *FetchError) error {
	if s.metrics != nil {
		s.metrics.UpstreamErrors.WithLabelValues(string(err.Kind)).Inc()
	}
	return err
}

// AsFetchError reports whether err is a *FetchError and returns it.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
