package cache

import "time"

// entryOverhead approximates the per-entry bookkeeping cost.
const entryOverhead = 128

// estimateEntrySize returns a rough byte count for a stored entry. It only
// feeds the memory_estimate statistic and never drives eviction.
func estimateEntrySize(key string, value any) int64 {
	return entryOverhead + int64(len(key)) + estimateSize(value)
}

func estimateSize(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return 16 + int64(len(val))
	case []byte:
		return 24 + int64(len(val))
	case bool, int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	case int, int64, uint, uint64, float64, uintptr:
		return 8
	case time.Time:
		return 24
	case map[string]any:
		size := int64(48)
		for k, item := range val {
			size += 16 + int64(len(k)) + estimateSize(item)
		}
		return size
	case []any:
		size := int64(24)
		for _, item := range val {
			size += 16 + estimateSize(item)
		}
		return size
	case []string:
		size := int64(24)
		for _, item := range val {
			size += 16 + int64(len(item))
		}
		return size
	default:
		// Opaque payload: count an interface header and a pointer.
		return 24
	}
}
