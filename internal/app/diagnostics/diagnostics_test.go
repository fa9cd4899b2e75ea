package diagnostics

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
)

func rec(id domain.PayloadID, k domain.LinkKind, o domain.Outcome) domain.TransmissionRecord {
	return domain.TransmissionRecord{PayloadID: id, Link: k, Outcome: o, Attempt: 1}
}

func TestRingKeepsNewest(t *testing.T) {
	d := New(3)
	for i := 1; i <= 5; i++ {
		d.Append(rec(domain.PayloadID(i), domain.LinkMesh, domain.OutcomeSuccess))
	}

	var ids []domain.PayloadID
	for _, r := range d.Records() {
		ids = append(ids, r.PayloadID)
	}
	if diff := cmp.Diff([]domain.PayloadID{3, 4, 5}, ids); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	assert.EqualValues(t, 5, d.Status().Delivered)
}

func TestFailureRateLooksAtLastN(t *testing.T) {
	d := New(16)
	d.Append(rec(1, domain.LinkCellular, domain.OutcomeFailed))
	d.Append(rec(2, domain.LinkCellular, domain.OutcomeFailed))
	d.Append(rec(3, domain.LinkMesh, domain.OutcomeTimeout))
	d.Append(rec(4, domain.LinkCellular, domain.OutcomeSuccess))
	d.Append(rec(5, domain.LinkCellular, domain.OutcomeSuccess))
	d.Append(rec(6, domain.LinkNone, domain.OutcomeExpired))

	assert.InDelta(t, 0.0, d.FailureRate(domain.LinkCellular, 2), 1e-9)
	assert.InDelta(t, 0.5, d.FailureRate(domain.LinkCellular, 4), 1e-9)
	assert.InDelta(t, 1.0, d.FailureRate(domain.LinkMesh, 10), 1e-9)
	assert.InDelta(t, 0.0, d.FailureRate(domain.LinkSatellite, 10), 1e-9)
}

func TestHooksAndFailureKind(t *testing.T) {
	d := New(4)
	var seen []domain.Outcome
	d.OnRecord(func(r domain.TransmissionRecord) { seen = append(seen, r.Outcome) })

	d.Append(rec(1, domain.LinkMesh, domain.OutcomeAbandoned))
	d.RecordFailure(fmt.Errorf("send: %w", domain.ErrTransmissionTimeout))

	assert.Equal(t, []domain.Outcome{domain.OutcomeAbandoned}, seen)
	st := d.Status()
	assert.Equal(t, "TransmissionTimeout", st.LastFailure)
	assert.EqualValues(t, 1, st.Abandoned)
}
