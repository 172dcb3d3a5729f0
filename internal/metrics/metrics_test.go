package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestRecordReminderCancelled(t *testing.T) {
	remindersCancelled.Reset()

	RecordReminderCancelled("rescheduled")
	RecordReminderCancelled("rescheduled")
	RecordReminderCancelled("gone")

	if got := counterValue(t, remindersCancelled.WithLabelValues("rescheduled")); got != 2 {
		t.Errorf("expected 2 rescheduled cancellations, got %f", got)
	}
	if got := counterValue(t, remindersCancelled.WithLabelValues("gone")); got != 1 {
		t.Errorf("expected 1 gone cancellation, got %f", got)
	}
}

func TestRecordCompletionsIgnoresEmpty(t *testing.T) {
	before := counterValue(t, completionsDetected)
	RecordCompletions(0)
	RecordCompletions(3)
	if got := counterValue(t, completionsDetected) - before; got != 3 {
		t.Errorf("expected +3 completions, got %f", got)
	}
}

func TestRecordFeedAndFired(t *testing.T) {
	feedDeliveries.Reset()
	remindersFired.Reset()

	RecordFeedDelivery("ok")
	RecordFeedDelivery("error")
	RecordReminderFired("display_failed")

	if got := counterValue(t, feedDeliveries.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok delivery, got %f", got)
	}
	if got := counterValue(t, remindersFired.WithLabelValues("display_failed")); got != 1 {
		t.Errorf("expected 1 failed display, got %f", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	RecordReminderScheduled()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mellow_reminders_scheduled_total") {
		t.Fatalf("scheduled counter missing from exposition")
	}
}
