package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
)

func payload(id domain.PayloadID) domain.Payload {
	return domain.Payload{
		ID:        id,
		Bytes:     []byte("jpeg"),
		Size:      4,
		Priority:  domain.PriorityAlert,
		CreatedAt: time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC),
	}
}

func replayIDs(t *testing.T, j *FileJournal) []domain.PayloadID {
	t.Helper()
	var ids []domain.PayloadID
	if err := j.Replay(func(p domain.Payload) error {
		ids = append(ids, p.ID)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	return ids
}

func TestFileJournalAppendSettleAndReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	for _, id := range []domain.PayloadID{3, 1, 2} {
		if err := j.Append(payload(id)); err != nil {
			t.Fatalf("append %d: %v", id, err)
		}
	}
	if err := j.Settle(2); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if got := replayIDs(t, j); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected [1 3], got %v", got)
	}
	if st := j.Stats(); st.Live != 2 || st.SizeBytes == 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	if st := j2.Stats(); st.Live != 2 {
		t.Fatalf("expected 2 live after reopen, got %d", st.Live)
	}
	got := replayIDs(t, j2)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected [1 3] after reopen, got %v", got)
	}
}

func TestFileJournalTornTail(t *testing.T) {
	dir := t.TempDir()
	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	if err := j.Append(payload(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	size := j.Stats().SizeBytes
	j.Close()

	f, err := os.OpenFile(filepath.Join(dir, "payloads.journal"), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte{0xFF, 0xAA, 0x01}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()

	j2, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer j2.Close()
	if got := j2.Stats().SizeBytes; got != size {
		t.Fatalf("expected torn tail cut back to %d, got %d", size, got)
	}
	if got := replayIDs(t, j2); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected [1], got %v", got)
	}
}

func TestFileJournalCompact(t *testing.T) {
	dir := t.TempDir()
	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	defer j.Close()

	for id := domain.PayloadID(1); id <= 4; id++ {
		if err := j.Append(payload(id)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	for _, id := range []domain.PayloadID{1, 2, 4} {
		if err := j.Settle(id); err != nil {
			t.Fatalf("settle: %v", err)
		}
	}
	before := j.Stats().SizeBytes
	if err := j.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if after := j.Stats().SizeBytes; after >= before {
		t.Fatalf("expected compaction to shrink %d, got %d", before, after)
	}
	if got := replayIDs(t, j); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected [3], got %v", got)
	}

	if err := j.Settle(3); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := j.Compact(); err != nil {
		t.Fatalf("compact empty: %v", err)
	}
	if st := j.Stats(); st.Live != 0 || st.SizeBytes != 0 {
		t.Fatalf("expected empty journal, got %+v", st)
	}
	if err := j.Append(payload(5)); err != nil {
		t.Fatalf("append after compact: %v", err)
	}
	if got := replayIDs(t, j); len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected [5], got %v", got)
	}
}

func TestFileJournalLaterAppendReplacesPayload(t *testing.T) {
	dir := t.TempDir()
	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	p := payload(4)
	if err := j.Append(p); err != nil {
		t.Fatalf("append: %v", err)
	}
	p.AttemptCount = 2
	p.LastFailed = true
	if err := j.Append(p); err != nil {
		t.Fatalf("re-append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	var got []domain.Payload
	if err := j2.Replay(func(p domain.Payload) error {
		got = append(got, p)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 1 || got[0].AttemptCount != 2 || !got[0].LastFailed {
		t.Fatalf("expected one payload with attempt 2, got %+v", got)
	}
	if st := j2.Stats(); st.Live != 1 {
		t.Fatalf("expected 1 live, got %d", st.Live)
	}
}
