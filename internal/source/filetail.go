package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"disasterwatch/internal/dedup"
	"disasterwatch/internal/domain"
)

const (
	ModeLines  = "lines"
	ModeBlocks = "blocks"
	ModeJSONL  = "jsonl"
)

// FileTail re-reads a flat text file on every poll. The file is never written.
//
// In lines mode every non-blank line is one item keyed by its text. In blocks
// mode items are separated by blank lines; the first line is the title and
// key, the rest is the body, and single-line blocks are ignored. In jsonl mode
// every line is a typed alert row keyed by its id (title when absent); lines
// that do not decode or lack a title are skipped.
//
// A key is emitted at most once per connector, so lines the pipeline rejects
// are not offered again on every poll.
type FileTail struct {
	path    string
	mode    string
	seen    *dedup.SeenSet
	emitted map[string]struct{}
}

func NewFileTail(path, mode string, seen *dedup.SeenSet) *FileTail {
	if mode == "" {
		mode = ModeBlocks
	}
	return &FileTail{path: path, mode: mode, seen: seen, emitted: make(map[string]struct{})}
}

func (f *FileTail) Name() string { return "file:" + filepath.Base(f.path) }

func (f *FileTail) Poll(ctx context.Context) ([]domain.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: waiting for file %s", ErrSourceUnavailable, f.path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrSourceUnavailable, f.path, err)
	}

	var units []domain.RawItem
	switch f.mode {
	case ModeLines:
		units = f.lines(string(data))
	case ModeJSONL:
		units = f.rows(string(data))
	default:
		units = f.blocks(string(data))
	}

	out := units[:0]
	for _, u := range units {
		if _, dup := f.emitted[u.SourceKey]; dup {
			continue
		}
		if f.seen != nil && f.seen.Seen(u.SourceKey) {
			continue
		}
		f.emitted[u.SourceKey] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

func (f *FileTail) lines(data string) []domain.RawItem {
	var out []domain.RawItem
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, domain.RawItem{Title: line, SourceKey: line, Source: f.Name()})
	}
	return out
}

func (f *FileTail) blocks(data string) []domain.RawItem {
	var (
		out   []domain.RawItem
		block []string
	)
	flush := func() {
		if len(block) >= 2 {
			out = append(out, domain.RawItem{
				Title:     block[0],
				Body:      strings.Join(block[1:], "\n"),
				SourceKey: block[0],
				Source:    f.Name(),
			})
		}
		block = block[:0]
	}
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	return out
}

type alertRow struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	EventType  string `json:"event_type"`
	AlertLevel string `json:"alert_level"`
	Country    string `json:"country"`
	Region     string `json:"region"`
	Timestamp  string `json:"timestamp"`
	Status     string `json:"status"`
}

func (f *FileTail) rows(data string) []domain.RawItem {
	var out []domain.RawItem
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row alertRow
		if err := json.Unmarshal([]byte(line), &row); err != nil || strings.TrimSpace(row.Title) == "" {
			continue
		}
		key := strings.TrimSpace(row.ID)
		if key == "" {
			key = strings.TrimSpace(row.Title)
		}
		out = append(out, domain.RawItem{
			Title:     strings.TrimSpace(row.Title),
			Body:      strings.TrimSpace(row.Body),
			SourceKey: key,
			Source:    f.Name(),
			Structured: &domain.Structured{
				EventType:  row.EventType,
				AlertLevel: row.AlertLevel,
				Country:    row.Country,
				Region:     row.Region,
				Timestamp:  row.Timestamp,
				Status:     row.Status,
			},
		})
	}
	return out
}
