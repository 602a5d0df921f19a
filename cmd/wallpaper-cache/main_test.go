package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExporterMux(t *testing.T) {
	mux := newPrometheusExporterMux()

	request := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Body.String())

	// the default mux used by the profile service carries no metrics handler
	handler, pattern := http.DefaultServeMux.Handler(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Empty(t, pattern)
	assert.NotNil(t, handler) // the not-found handler
}
