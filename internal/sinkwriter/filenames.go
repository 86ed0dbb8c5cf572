package sinkwriter

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// committedFilename builds "<topic>+<partition>+<startOffset>+<endOffset>.<ext>"
// with both offsets zero-padded to padWidth digits, per spec.md §6.
func committedFilename(topic string, partition int32, startOffset, endOffset int64, padWidth int, ext string) string {
	return fmt.Sprintf("%s+%d+%0*d+%0*d.%s", topic, partition, padWidth, startOffset, padWidth, endOffset, ext)
}

// tempFilePath namespaces a temp file under a fixed "+tmp" subtree of the
// encoded partition's directory, so recovery can recognize orphaned temps
// by their parent directory alone (spec.md §4.6).
func tempFilePath(directory, encodedPartition string, epochSeq int64, ext string) string {
	return fmt.Sprintf("%s/+tmp/%s-%d.%s", directory, sanitizeForPath(encodedPartition), epochSeq, ext)
}

// parseCommittedFilename extracts (topic, partition, startOffset, endOffset)
// from a committed filename of the form
// "<topic>+<partition>+<startOffset>+<endOffset>.<ext>". It returns ok=false
// for any name that doesn't match, so List() results containing unrelated
// files (or a WAL's own log file) are silently skipped during recovery scan.
func parseCommittedFilename(name string) (topic string, partition int32, startOffset, endOffset int64, ok bool) {
	base := path.Base(name)
	ext := path.Ext(base)
	if ext == "" {
		return "", 0, 0, 0, false
	}
	base = strings.TrimSuffix(base, ext)
	parts := strings.Split(base, "+")
	if len(parts) != 4 {
		return "", 0, 0, 0, false
	}
	p, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return "", 0, 0, 0, false
	}
	start, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}
	end, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}
	return parts[0], int32(p), start, end, true
}

func sanitizeForPath(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			out = append(out, '_')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
