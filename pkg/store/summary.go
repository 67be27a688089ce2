package store

// Summary reports the result of one merge: how many records updated an
// existing document and how many created a new one. Records dropped for a
// missing identifier count toward neither.
type Summary struct {
	Matched  int64 `json:"matched"`
	Upserted int64 `json:"upserted"`
}

// Add accumulates another summary into this one.
func (s *Summary) Add(other Summary) {
	s.Matched += other.Matched
	s.Upserted += other.Upserted
}
