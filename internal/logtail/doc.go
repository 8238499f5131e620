// Package logtail reads the tail of the dashboard log for the activity view.
//
// Read returns the last N lines of a file in one pass, holding at most N
// lines in a ring buffer. Tail parses those lines as zerolog JSON records
// into Entry values; anything that is not a JSON object is kept as a plain
// message so hand-written or truncated lines still show up.
//
//	entries, err := logtail.Tail(cfg.LogPath(), 400)
//	for _, e := range entries {
//		fmt.Println(e.String())
//	}
package logtail
