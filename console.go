package main

import (
	"fmt"
	"io"

	"gregoryjjb/stoplight/intersection"
)

func statusLine(s intersection.Status) string {
	return fmt.Sprintf("[Cycle %03d] %s: %-6s | %s: %-6s",
		s.Cycle, intersection.StreetA, s.StreetA, intersection.StreetB, s.StreetB)
}

// consoleObserver redraws the status line on every phase change.
func consoleObserver(w io.Writer) func(intersection.Status) {
	return func(s intersection.Status) {
		WriteStatusLine(w, statusLine(s))
	}
}
