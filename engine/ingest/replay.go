package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/fn"
)

// maxLineBytes bounds a single JSONL record. Reddit caps comment bodies at
// 10k characters, so 1 MiB leaves generous headroom.
const maxLineBytes = 1 << 20

// ReplayStats summarizes one replay pass.
type ReplayStats struct {
	Records int `json:"records"`
	Threads int `json:"threads"`
	Indexed int `json:"indexed"`
}

// ReadRecords parses JSON Lines comment records from r. Parsing is strict:
// a malformed line fails the whole read rather than dropping data.
func ReadRecords(r io.Reader) ([]domain.FlatComment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var results []fn.Result[domain.FlatComment]
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c domain.FlatComment
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			results = append(results, fn.Err[domain.FlatComment](fmt.Errorf("line %d: %w", line, err)))
			continue
		}
		results = append(results, fn.Ok(c))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fn.Collect(results).Unwrap()
}

// toEntry validates a record and tags it with its thread.
var toEntry = fn.Then(Validate, Resolve)

// Replay reads a JSONL stream and writes its records to the stores, one
// batch per thread so graph and vector writes stay batched. Validation and
// thread resolution are strict; any bad record fails the replay.
func Replay(ctx context.Context, r io.Reader, deps Deps) (ReplayStats, error) {
	var stats ReplayStats

	records, err := ReadRecords(r)
	if err != nil {
		return stats, err
	}
	entries, err := fn.Collect(fn.Map(records, func(c domain.FlatComment) fn.Result[Entry] {
		return toEntry(ctx, c)
	})).Unwrap()
	if err != nil {
		return stats, err
	}
	stats.Records = len(entries)

	groups := fn.GroupBy(entries, func(e Entry) string { return e.ThreadID })
	for threadID, group := range groups {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		comments := fn.Map(group, func(e Entry) domain.FlatComment { return e.Comment })

		if err := deps.Dataset.SaveComments(ctx, threadID, comments); err != nil {
			return stats, fmt.Errorf("dataset save %s: %w", threadID, err)
		}
		if deps.Graph != nil {
			if err := deps.Graph.SaveComments(ctx, threadID, comments); err != nil {
				return stats, fmt.Errorf("graph save %s: %w", threadID, err)
			}
		}
		if deps.Index != nil {
			n, err := deps.Index.IndexComments(ctx, threadID, comments)
			if err != nil {
				return stats, fmt.Errorf("semantic index %s: %w", threadID, err)
			}
			stats.Indexed += n
		}
		stats.Threads++
	}
	return stats, nil
}
