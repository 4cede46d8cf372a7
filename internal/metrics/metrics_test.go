package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arawak/tagsmith/internal/tag"
)

func TestObserveResult(t *testing.T) {
	okBefore := testutil.ToFloat64(FormatRequests.WithLabelValues(OutcomeOK))
	acceptedBefore := testutil.ToFloat64(TagsAccepted)
	longBefore := testutil.ToFloat64(TagsRejected.WithLabelValues(string(tag.RejectTooLong)))

	ObserveResult(tag.Result{
		Tags: []string{"Go", "rust"},
		Rejected: []tag.Rejection{
			{Title: "toolongtitle", Reason: tag.RejectTooLong},
		},
	})

	if got := testutil.ToFloat64(FormatRequests.WithLabelValues(OutcomeOK)) - okBefore; got != 1 {
		t.Fatalf("expected 1 ok request, got %v", got)
	}
	if got := testutil.ToFloat64(TagsAccepted) - acceptedBefore; got != 2 {
		t.Fatalf("expected 2 accepted tags, got %v", got)
	}
	if got := testutil.ToFloat64(TagsRejected.WithLabelValues(string(tag.RejectTooLong))) - longBefore; got != 1 {
		t.Fatalf("expected 1 too_long rejection, got %v", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	DictionaryFetch.WithLabelValues(SourceCache).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tagsmith_dictionary_fetch_total") {
		t.Fatalf("metrics output missing dictionary counter")
	}
}
