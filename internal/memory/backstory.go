package memory

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/personae/internal/model"
)

// Passage sizes in bytes.
const (
	passageTarget = 400
	passageMax    = 600
)

// ImportBackstory splits a markdown backstory into passages and stores each
// one as a memory of the named person. It stops at the first failure and
// returns the memories stored so far.
func (e *Engine) ImportBackstory(ctx context.Context, personName, text string) ([]model.MemoryID, error) {
	passages := SplitPassages(text)
	ids := make([]model.MemoryID, 0, len(passages))
	for _, p := range passages {
		id, err := e.CreateMemory(ctx, personName, p)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	e.log.Info("backstory imported", zap.String("person", personName), zap.Int("memories", len(ids)))
	return ids, nil
}

// SplitPassages breaks markdown into passages small enough to embed as single
// memories. A heading always starts a new passage. Blank lines separate
// sections, and neighbouring short sections are merged up to passageTarget
// bytes. Anything longer than passageMax is cut on line boundaries.
func SplitPassages(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= passageMax {
		return []string{text}
	}

	var out []string
	var acc string
	flush := func() {
		if acc == "" {
			return
		}
		if len(acc) > passageMax {
			out = append(out, cutLines(acc)...)
		} else {
			out = append(out, acc)
		}
		acc = ""
	}

	for _, sec := range sections(text) {
		switch {
		case acc == "":
			acc = sec
		case strings.HasPrefix(sec, "#"):
			flush()
			acc = sec
		case len(acc)+2+len(sec) <= passageTarget:
			acc += "\n\n" + sec
		default:
			flush()
			acc = sec
		}
	}
	flush()
	return out
}

// sections splits on headings and blank lines.
func sections(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if s := strings.TrimSpace(strings.Join(cur, "\n")); s != "" {
			out = append(out, s)
		}
		cur = nil
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			flush()
		}
		if trimmed != "" {
			cur = append(cur, line)
		}
	}
	flush()
	return out
}

// cutLines packs whole lines into passages of about passageTarget bytes. A
// single line longer than that becomes its own passage.
func cutLines(text string) []string {
	var out []string
	var cur []string
	size := 0
	for _, line := range strings.Split(text, "\n") {
		if size+len(line) > passageTarget && len(cur) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(cur, "\n")))
			cur, size = nil, 0
		}
		cur = append(cur, line)
		size += len(line) + 1
	}
	if s := strings.TrimSpace(strings.Join(cur, "\n")); s != "" {
		out = append(out, s)
	}
	return out
}
