// Package chart reads just enough of an .aff chart to find its first
// playable note, which anchors the playback clock.
package chart

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var arctapRe = regexp.MustCompile(`arctap\((\d+)\)`)

// EarliestInstant scans r line by line and returns the smallest note
// instant in milliseconds. Ground taps, holds, ground arcs and arctaps
// count; timing, camera and scenecontrol lines do not. ok is false when
// no note is found.
func EarliestInstant(r io.Reader) (ms int64, ok bool, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		t, found := lineInstant(strings.TrimSpace(sc.Text()))
		if !found {
			continue
		}
		if !ok || t < ms {
			ms, ok = t, true
		}
	}
	if err := sc.Err(); err != nil {
		return 0, false, err
	}
	return ms, ok, nil
}

func lineInstant(line string) (int64, bool) {
	switch {
	case strings.HasPrefix(line, "(") && strings.HasSuffix(line, ");"):
		return firstField(line[1 : len(line)-2])
	case strings.HasPrefix(line, "hold(") && strings.HasSuffix(line, ");"):
		return firstField(line[5 : len(line)-2])
	case strings.HasPrefix(line, "arc(") && strings.HasSuffix(line, ");"):
		parts := strings.Split(line[4:len(line)-2], ",")
		// sky arcs are traces, not notes
		if len(parts) < 10 || strings.EqualFold(strings.TrimSpace(parts[len(parts)-1]), "true") {
			return 0, false
		}
		return firstField(line[4 : len(line)-2])
	case strings.Contains(line, "arctap("):
		m := arctapRe.FindStringSubmatch(line)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func firstField(body string) (int64, bool) {
	first, _, _ := strings.Cut(body, ",")
	v, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
