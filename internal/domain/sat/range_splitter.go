package sat

import (
	"time"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// MaxWindowDays is the widest period the remote service accepts per request
const MaxWindowDays = 31

// SplitRange slices [start, end] into contiguous sub-ranges of at most
// maxDays days each and returns one pending download request per slice.
// Future dates are clamped to today; a range starting after today is
// rejected. Dates are normalized to whole days in the input's location.
func SplitRange(direction Direction, start, end time.Time, maxDays int, now time.Time) ([]*DownloadRequest, error) {
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Invalid direction")
	}
	if maxDays <= 0 {
		maxDays = MaxWindowDays
	}

	start = truncateDay(start)
	end = truncateDay(end)
	today := truncateDay(now)

	if start.After(end) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period start cannot be after period end")
	}
	if start.After(today) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period cannot start in the future")
	}
	if end.After(today) {
		end = today
	}

	var requests []*DownloadRequest
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, maxDays) {
		sliceEnd := cursor.AddDate(0, 0, maxDays-1)
		if sliceEnd.After(end) {
			sliceEnd = end
		}
		req, err := NewDownloadRequest(direction, cursor, sliceEnd)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
