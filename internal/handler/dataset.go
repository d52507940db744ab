package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"dataset-proxy-go/internal/service"
)

// fallbackErrorMessage is returned when a failure carries no usable message.
const fallbackErrorMessage = "Failed to fetch dataset from backend"

// DatasetFetcher loads a dataset for the given inbound query.
type DatasetFetcher interface {
	Fetch(ctx context.Context, inbound url.Values) (json.RawMessage, error)
}

// DatasetHandler relays dataset requests to the backend.
type DatasetHandler struct {
	service DatasetFetcher
	logger  *slog.Logger
}

// NewDatasetHandler creates a DatasetHandler.
func NewDatasetHandler(svc DatasetFetcher, logger *slog.Logger) *DatasetHandler {
	return &DatasetHandler{
		service: svc,
		logger:  logger.With("component", "dataset_handler"),
	}
}

// Handle fetches the dataset and writes the backend JSON as-is with status 200.
// Every failure becomes a 500 with {"error": message}.
func (h *DatasetHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := h.service.Fetch(req.Context(), req.URL.Query())
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSONBlob(http.StatusOK, body)
}

func (h *DatasetHandler) mapError(c echo.Context, err error) error {
	msg := fallbackErrorMessage
	attrs := []any{"path", c.Request().URL.Path}

	if fe, ok := service.AsFetchError(err); ok {
		if fe.Message != "" {
			msg = fe.Message
		}
		attrs = append(attrs, "kind", string(fe.Kind))
		if fe.StatusCode != 0 {
			attrs = append(attrs, "upstream_status", fe.StatusCode)
		}
	}

	h.logger.Error("dataset fetch failed", append([]any{"err", err}, attrs...)...)

	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": msg,
	})
}
