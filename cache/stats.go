package cache

// Stats is a snapshot of UnifiedCache counters.
type Stats struct {
	Size           int    `json:"size"`
	MaxSize        int    `json:"max_size"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Evictions      uint64 `json:"evictions"`
	Invalidations  uint64 `json:"invalidations"`
	Expirations    uint64 `json:"expirations"`
	MemoryEstimate int64  `json:"memory_estimate"`
}

// Requests returns Hits + Misses.
func (s Stats) Requests() uint64 {
	return s.Hits + s.Misses
}

// HitRate returns Hits / (Hits + Misses), or 0 before any request.
func (s Stats) HitRate() float64 {
	total := s.Requests()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// KeyStats describes the key memo.
type KeyStats struct {
	Size int `json:"size"`
}

// UnifiedReport is Stats with its derived ratio.
type UnifiedReport struct {
	Stats
	HitRate float64 `json:"hit_rate"`
}

// SectionReport is SectionStats with its derived ratio.
type SectionReport struct {
	SectionStats
	LoadedRatio float64 `json:"loaded_ratio"`
}

// Report aggregates the statistics of one cache engine.
type Report struct {
	Unified  UnifiedReport `json:"unified_cache"`
	Sections SectionReport `json:"lazy_sections"`
	Keys     KeyStats      `json:"key_cache"`
}

// Collect gathers a Report. Nil components contribute zero values. Ratios
// are computed on every call.
func Collect(u *UnifiedCache, s *SectionStore, k *KeyCache) Report {
	var r Report
	if u != nil {
		st := u.Stats()
		r.Unified = UnifiedReport{Stats: st, HitRate: st.HitRate()}
	}
	if s != nil {
		st := s.Stats()
		r.Sections = SectionReport{SectionStats: st, LoadedRatio: st.LoadedRatio()}
	}
	if k != nil {
		r.Keys = KeyStats{Size: k.Len()}
	}
	return r
}
