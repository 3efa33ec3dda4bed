package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span of a clip file.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

func (r ByteRange) Header(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange reads a single-range Range header against a file of the given
// size. ok is false when the header is empty. Only the first span of a
// multi-range request is honoured.
func ParseRange(header string, size int64) (r ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}
	set, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}
	if first, _, multi := strings.Cut(set, ","); multi {
		set = strings.TrimSpace(first)
	}
	from, to, found := strings.Cut(set, "-")
	if !found || strings.Contains(to, "-") {
		return ByteRange{}, false, ErrInvalidRange
	}

	if from == "" {
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, false, ErrInvalidRange
		}
		return ByteRange{Start: max(size-n, 0), End: size - 1}, true, nil
	}

	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, false, ErrInvalidRange
	}
	end := size - 1
	if to != "" {
		if end, err = strconv.ParseInt(to, 10, 64); err != nil {
			return ByteRange{}, false, ErrInvalidRange
		}
	}
	if start > end || start >= size {
		return ByteRange{}, false, ErrUnsatisfiable
	}
	return ByteRange{Start: start, End: min(end, size-1)}, true, nil
}
