package engine

import (
	"github.com/tanq16/partdl/internal/utils"
)

const (
	singlePartLimit = 50 * utils.MiB
	mediumTierLimit = 500 * utils.MiB
	mediumPartSize  = 50 * utils.MiB
	largePartSize   = 100 * utils.MiB
)

// PartCount picks how many parts a resource of total bytes is split into.
// Small files are not split; larger ones get more parts up to 16.
func PartCount(total int64) int {
	switch {
	case total < singlePartLimit:
		return 1
	case total < mediumTierLimit:
		return int(clamp(total/mediumPartSize, 2, 4))
	default:
		return int(clamp(total/largePartSize, 4, 16))
	}
}

// PlanRanges partitions [0, total) into PartCount(total) contiguous ranges.
// Every range but the last has ceil(total/parts) bytes.
func PlanRanges(total int64) []utils.ByteRange {
	if total <= 0 {
		return nil
	}
	parts := int64(PartCount(total))
	size := (total + parts - 1) / parts
	ranges := make([]utils.ByteRange, 0, parts)
	for i := range parts {
		start := i * size
		if start >= total {
			break
		}
		ranges = append(ranges, utils.ByteRange{
			Index: int(i),
			Start: start,
			End:   min(start+size-1, total-1),
		})
	}
	return ranges
}

// SingleRange is the plan for sources that cannot serve partial content.
func SingleRange(total int64) []utils.ByteRange {
	if total <= 0 {
		return nil
	}
	return []utils.ByteRange{{Index: 0, Start: 0, End: total - 1}}
}

func clamp(v, lo, hi int64) int64 {
	return max(lo, min(v, hi))
}
