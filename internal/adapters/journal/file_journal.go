package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// record format: [8 bytes payload id][1 byte kind][4 bytes len][len bytes json]
const recordHeaderLen = 13

const (
	kindPut    byte = 1
	kindSettle byte = 2
)

// FileJournal is an append-only log of queue membership. Every write is
// flushed and synced before returning since the node can lose power at any
// moment.
type FileJournal struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer
	live      map[domain.PayloadID]struct{}
	sizeBytes int64
}

func NewFileJournal(dir string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &FileJournal{
		path: filepath.Join(dir, "payloads.journal"),
		live: make(map[domain.PayloadID]struct{}),
	}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *FileJournal) open() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	j.file = f
	j.writer = bufio.NewWriterSize(f, 64<<10)
	if err := j.scanExisting(); err != nil {
		f.Close()
		return err
	}
	_, err = f.Seek(0, io.SeekEnd)
	return err
}

// scanExisting rebuilds the live set and cuts off a torn tail record.
func (j *FileJournal) scanExisting() error {
	j.live = make(map[domain.PayloadID]struct{})
	offset, err := j.walk(func(id domain.PayloadID, kind byte, _ []byte) error {
		switch kind {
		case kindPut:
			j.live[id] = struct{}{}
		case kindSettle:
			delete(j.live, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := j.file.Truncate(offset); err != nil {
		return err
	}
	j.sizeBytes = offset
	return nil
}

// walk reads complete records from the start of the file and returns the
// offset just past the last one.
func (j *FileJournal) walk(fn func(id domain.PayloadID, kind byte, body []byte) error) (int64, error) {
	rf, err := os.Open(j.path)
	if err != nil {
		return 0, err
	}
	defer rf.Close()

	r := bufio.NewReader(rf)
	var offset int64
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("journal header: %w", err)
		}
		id := domain.PayloadID(binary.BigEndian.Uint64(hdr[0:8]))
		kind := hdr[8]
		length := binary.BigEndian.Uint32(hdr[9:13])

		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("journal body: %w", err)
		}
		if kind != kindPut && kind != kindSettle {
			return offset, nil
		}
		if err := fn(id, kind, body); err != nil {
			return offset, err
		}
		offset += recordHeaderLen + int64(length)
	}
}

func (j *FileJournal) Append(p domain.Payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload %d: %w", p.ID, err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writeLocked(p.ID, kindPut, b); err != nil {
		return err
	}
	j.live[p.ID] = struct{}{}
	return nil
}

func (j *FileJournal) Settle(id domain.PayloadID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.live[id]; !ok {
		return nil
	}
	if err := j.writeLocked(id, kindSettle, nil); err != nil {
		return err
	}
	delete(j.live, id)
	return nil
}

func (j *FileJournal) writeLocked(id domain.PayloadID, kind byte, body []byte) error {
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	hdr[8] = kind
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(body)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := j.writer.Write(body); err != nil {
		return err
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	j.sizeBytes += int64(len(hdr) + len(body))
	return nil
}

// Replay calls fn for every unsettled payload in id order.
func (j *FileJournal) Replay(fn func(p domain.Payload) error) error {
	j.mu.Lock()
	pending, err := j.pendingLocked()
	j.mu.Unlock()
	if err != nil {
		return err
	}
	for _, p := range pending {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (j *FileJournal) pendingLocked() ([]domain.Payload, error) {
	if err := j.writer.Flush(); err != nil {
		return nil, err
	}
	byID := make(map[domain.PayloadID]domain.Payload)
	_, err := j.walk(func(id domain.PayloadID, kind byte, body []byte) error {
		if kind == kindSettle {
			delete(byID, id)
			return nil
		}
		var p domain.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("corrupt journal entry %d: %w", id, err)
		}
		byID[id] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payload, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// Compact rewrites the journal with only the unsettled payloads.
func (j *FileJournal) Compact() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.live) == 0 {
		if err := j.writer.Flush(); err != nil {
			return err
		}
		if err := j.file.Truncate(0); err != nil {
			return err
		}
		j.sizeBytes = 0
		return j.file.Sync()
	}

	pending, err := j.pendingLocked()
	if err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, p := range pending {
		b, err := json.Marshal(p)
		if err != nil {
			f.Close()
			return err
		}
		var hdr [recordHeaderLen]byte
		binary.BigEndian.PutUint64(hdr[0:8], uint64(p.ID))
		hdr[8] = kindPut
		binary.BigEndian.PutUint32(hdr[9:13], uint32(len(b)))
		if _, err := w.Write(hdr[:]); err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write(b); err != nil {
			f.Close()
			return err
		}
	}
	if err := errors.Join(w.Flush(), f.Sync(), f.Close()); err != nil {
		return fmt.Errorf("compact journal: %w", err)
	}
	if err := j.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("compact journal: %w", err)
	}
	return j.open()
}

func (j *FileJournal) Stats() ports.JournalStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ports.JournalStats{Live: len(j.live), SizeBytes: j.sizeBytes}
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return errors.Join(j.writer.Flush(), j.file.Close())
}

var _ ports.Journal = (*FileJournal)(nil)
