package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balances/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seenID string
	var seenLogger *log.Logger
	h := log.Middleware(log.Discard())(Middleware(func(*http.Request) string { return "1.2.3.4" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenID = GetRequestID(r.Context())
			seenLogger = log.FromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, strings.HasPrefix(seenID, "req_"))
	assert.Equal(t, seenID, rr.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	require.NotNil(t, seenLogger)
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		assert.Len(t, id, len("req_")+16)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
