package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid range")

// Range is an inclusive byte span of a file.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for a file of size bytes.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange parses a single "bytes=<start>-[<end>]" header against a file of
// size bytes. A missing end means the last byte; an end past the file is
// clamped to it.
func ParseRange(header string, size int64) (Range, error) {
	rangeSet, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	if strings.Contains(rangeSet, ",") {
		return Range{}, fmt.Errorf("%w: multiple ranges are not supported", ErrInvalidRange)
	}

	startStr, endStr, ok := strings.Cut(strings.TrimSpace(rangeSet), "-")
	if !ok || startStr == "" {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return Range{}, fmt.Errorf("%w: bad start %q", ErrInvalidRange, startStr)
	}
	if start >= size {
		return Range{}, fmt.Errorf("%w: start %d beyond size %d", ErrInvalidRange, start, size)
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return Range{}, fmt.Errorf("%w: bad end %q", ErrInvalidRange, endStr)
		}
		if end < start {
			return Range{}, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, end, start)
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return Range{Start: start, End: end}, nil
}
