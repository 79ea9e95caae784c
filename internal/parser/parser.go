// Package parser converts vendor-specific session logs into the unified
// usage event stream. Each source owns exactly one raw schema; individual
// malformed records are skipped and missing session stores contribute
// nothing, so one broken file never fails a whole pass.
package parser

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tokgraph/tokgraph/internal/model"
)

// DefaultWorkers bounds concurrent file parsing to keep descriptor usage
// sane when scanning large session directories.
const DefaultWorkers = 8

// Options controls one parse pass.
type Options struct {
	Roots   Roots
	Sources []string // defaults to model.AllSources
	Workers int      // defaults to DefaultWorkers
}

// ParseAll scans and parses every requested source, bounded by the worker
// budget. Sources share no state and run in parallel. The only returned
// error is context cancellation.
func ParseAll(ctx context.Context, opts Options) ([]model.UnifiedMessage, error) {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = model.AllSources
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var mu sync.Mutex
	var all []model.UnifiedMessage

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, source := range sources {
		for _, path := range opts.Roots.FindFiles(source) {
			source, path := source, path
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				msgs := parseFile(source, path)
				if len(msgs) == 0 {
					return nil
				}
				mu.Lock()
				all = append(all, msgs...)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func parseFile(source, path string) []model.UnifiedMessage {
	switch source {
	case model.SourceOpenCode:
		if msg := ParseOpenCodeFile(path); msg != nil {
			return []model.UnifiedMessage{*msg}
		}
		return nil
	case model.SourceClaude:
		return ParseClaudeFile(path)
	case model.SourceCodex:
		return ParseCodexFile(path)
	case model.SourceGemini:
		return ParseGeminiFile(path)
	case model.SourceCursor:
		msgs, err := ParseCursorFile(path)
		if err != nil {
			log.WithField("file", path).WithError(err).Warn("skipping cursor export")
			return nil
		}
		return msgs
	default:
		return nil
	}
}

// Filter narrows messages to a date window. Empty bounds are open; year
// filters on the YYYY prefix of the derived date.
func Filter(msgs []model.UnifiedMessage, since, until, year string) []model.UnifiedMessage {
	if since == "" && until == "" && year == "" {
		return msgs
	}
	filtered := msgs[:0:0]
	for _, m := range msgs {
		if year != "" && (len(m.Date) < 4 || m.Date[:4] != year) {
			continue
		}
		if since != "" && m.Date < since {
			continue
		}
		if until != "" && m.Date > until {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}
