package crawler

// RecordStore is the ordered, append-only record log for one session. Its
// last entry is the resume checkpoint. It is not safe for concurrent use;
// the controller is its only writer.
type RecordStore struct {
	records []Record
}

// NewRecordStore returns a store, optionally seeded from a previous run.
func NewRecordStore(seed ...Record) *RecordStore {
	s := &RecordStore{records: make([]Record, 0, len(seed))}
	for _, rec := range seed {
		s.Append(rec)
	}
	return s
}

// Append adds rec to the end of the log.
func (s *RecordStore) Append(rec Record) {
	s.records = append(s.records, rec.Clone())
}

// PeekLast returns the last record without removing it.
func (s *RecordStore) PeekLast() (Record, bool) {
	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1].Clone(), true
}

// PopLast removes and returns the last record.
func (s *RecordStore) PopLast() (Record, bool) {
	rec, ok := s.PeekLast()
	if !ok {
		return Record{}, false
	}
	s.records[len(s.records)-1] = Record{}
	s.records = s.records[:len(s.records)-1]
	return rec, true
}

// Checkpoint returns the id of the last addressable record. Trailing records
// without an id cannot be re-addressed, so they are discarded. The
// checkpoint record itself stays in place until the caller pops it.
func (s *RecordStore) Checkpoint() (string, bool) {
	for {
		rec, ok := s.PeekLast()
		if !ok {
			return "", false
		}
		if rec.ID != "" {
			return rec.ID, true
		}
		s.PopLast()
	}
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	return len(s.records)
}

// Records returns a copy of the log in visitation order.
func (s *RecordStore) Records() []Record {
	out := make([]Record, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out
}
