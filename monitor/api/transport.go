package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fedbench/fedsim/monitor"
)

func MakeHandler(svc monitor.Service) http.Handler {
	opts := []kithttp.ServerOption{}

	mux := chi.NewRouter()

	mux.Get("/status", kithttp.NewServer(
		MakeStatusEndpoint(svc),
		decodeEmptyRequest,
		encodeJSONResponse,
		opts...,
	).ServeHTTP)

	mux.Get("/history", kithttp.NewServer(
		MakeHistoryEndpoint(svc),
		decodeEmptyRequest,
		encodeJSONResponse,
		opts...,
	).ServeHTTP)

	mux.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(mux, "monitor")
}

func decodeEmptyRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return nil, nil
}

func encodeJSONResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(response)
}
