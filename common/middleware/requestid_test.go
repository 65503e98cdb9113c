package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generates new ID", incoming: ""},
		{name: "propagates existing ID", incoming: "existing-req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, captured, rr.Header().Get(RequestIDHeader))
			if tt.incoming == "" {
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.incoming, captured)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	ctx := context.WithValue(context.Background(), RequestIDKey, 42)
	assert.Empty(t, GetRequestID(ctx))
}
