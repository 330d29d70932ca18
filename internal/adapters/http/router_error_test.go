package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fundingstack/docintake/internal/config"
	"github.com/fundingstack/docintake/internal/core/domain"
)

type intakeErrFake struct {
	err error
}

func (f intakeErrFake) Upload(context.Context, string, string, string, string, io.Reader) (*domain.Document, error) {
	return nil, f.err
}

func (f intakeErrFake) Retry(context.Context, string) (*domain.Document, error) {
	return nil, f.err
}

type readerErrFake struct {
	err error
}

func (f readerErrFake) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, f.err
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		intakeErrFake{},
		readerErrFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id=missing"))},
		nil,
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadMapsQueueSaturationTo503(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		intakeErrFake{err: domain.WrapError(domain.ErrQueueSaturated, "publish document received", errors.New("reconnect buffer full"))},
		readerErrFake{},
		nil,
	).Handler()

	body, contentType := multipartUpload(t,
		map[string]string{"application_id": "app-7"}, "statement.png", []byte("scan bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestRetryMapsIllegalTransitionTo409(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		intakeErrFake{err: domain.WrapError(domain.ErrIllegalTransition, "retry document", errors.New("document doc-1 is COMPLETED"))},
		readerErrFake{},
		nil,
	).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/retry", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	wrap := func(kind error) error {
		return domain.WrapError(kind, "op", errors.New("detail"))
	}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", wrap(domain.ErrInvalidInput), http.StatusBadRequest},
		{"invalid image", wrap(domain.ErrInvalidImage), http.StatusBadRequest},
		{"unsupported language", wrap(domain.ErrUnsupportedLanguage), http.StatusBadRequest},
		{"not found", wrap(domain.ErrDocumentNotFound), http.StatusNotFound},
		{"illegal transition", wrap(domain.ErrIllegalTransition), http.StatusConflict},
		{"concurrent processing", wrap(domain.ErrConcurrentProcessing), http.StatusConflict},
		{"classification rejected", wrap(domain.ErrClassificationRejected), http.StatusUnprocessableEntity},
		{"field validation", wrap(domain.ErrFieldValidation), http.StatusUnprocessableEntity},
		{"queue saturated", wrap(domain.ErrQueueSaturated), http.StatusServiceUnavailable},
		{"temporary", wrap(domain.ErrTemporary), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapErrorToHTTPStatus(tt.err); got != tt.want {
				t.Fatalf("mapErrorToHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-Id"); got != "req-abc" {
		t.Fatalf("request id header = %q", got)
	}

	// A request without the header gets a generated one.
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res2.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id header")
	}
}
