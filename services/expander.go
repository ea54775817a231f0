package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mediaserver/logger"
	"mediaserver/metrics"
)

// MaxExpansionDepth is the deepest level that is still probed
const MaxExpansionDepth = 3

// ProbeEntry is one [level, content] row of gallery-dl's simulate output
type ProbeEntry struct {
	Level   int
	Content any
}

// Prober inspects a URL without downloading it
type Prober interface {
	Probe(ctx context.Context, url string) ([]ProbeEntry, error)
}

// GalleryDLProber runs "gallery-dl -s -j <url>"
type GalleryDLProber struct {
	Bin    string
	Runner CommandRunner
}

// NewGalleryDLProber creates a prober for the given binary
func NewGalleryDLProber(bin string, runner CommandRunner) *GalleryDLProber {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &GalleryDLProber{Bin: bin, Runner: runner}
}

// Probe implements Prober
func (p *GalleryDLProber) Probe(ctx context.Context, url string) ([]ProbeEntry, error) {
	res, err := p.Runner.Run(ctx, p.Bin, "-s", "-j", url)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("probe exited with %d", res.ExitCode)
	}
	return ParseProbeOutput([]byte(res.Output))
}

// ParseProbeOutput decodes a JSON array of [level, content, ...] rows.
// Log lines around the array are ignored.
func ParseProbeOutput(out []byte) ([]ProbeEntry, error) {
	end := bytes.LastIndexByte(out, ']')
	if end < 0 {
		return nil, errors.New("no JSON array in probe output")
	}

	var rows []json.RawMessage
	decoded := false
	for start := bytes.IndexByte(out, '['); start >= 0 && start < end; {
		if err := json.Unmarshal(out[start:end+1], &rows); err == nil {
			decoded = true
			break
		}
		next := bytes.IndexByte(out[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	if !decoded {
		return nil, errors.New("decode probe output: no valid JSON array")
	}

	entries := make([]ProbeEntry, 0, len(rows))
	for _, row := range rows {
		var cells []json.RawMessage
		if err := json.Unmarshal(row, &cells); err != nil || len(cells) == 0 {
			continue
		}
		var entry ProbeEntry
		if err := json.Unmarshal(cells[0], &entry.Level); err != nil {
			continue
		}
		if len(cells) > 1 {
			_ = json.Unmarshal(cells[1], &entry.Content)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Seen is the set of URLs already handled in one batch
type Seen map[string]struct{}

// Add marks url and reports whether it was new
func (s Seen) Add(url string) bool {
	if _, ok := s[url]; ok {
		return false
	}
	s[url] = struct{}{}
	return true
}

// Expansion is one URL found below a collection. Collection is set when the
// URL expanded further; its own descendants follow it in the list.
type Expansion struct {
	URL        string
	Parent     string
	Collection bool
}

// Expander discovers the children of collection URLs
type Expander struct {
	prober  Prober
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewExpander creates an expander around prober
func NewExpander(prober Prober, log logger.Logger, m *metrics.Metrics) *Expander {
	if log == nil {
		log = logger.NewNop()
	}
	return &Expander{prober: prober, log: log, metrics: m}
}

// Expand returns the descendants of url in discovery order, or nothing when
// url is not a collection. Every returned URL is added to seen and URLs
// already in seen are skipped. Past MaxExpansionDepth nothing is probed.
func (e *Expander) Expand(ctx context.Context, url string, depth int, seen Seen) []Expansion {
	if depth > MaxExpansionDepth {
		e.metrics.ObserveExpansion("depth_limit")
		return nil
	}

	entries, err := e.prober.Probe(ctx, url)
	if err != nil {
		e.log.Warn("Expansion probe failed",
			logger.String("url", url),
			logger.Int("depth", depth),
			logger.Error(err),
		)
		e.metrics.ObserveExpansion("error")
		return nil
	}

	children := CollectionChildren(url, entries)
	if len(children) == 0 {
		e.metrics.ObserveExpansion("leaf")
		return nil
	}
	e.metrics.ObserveExpansion("collection")

	var found []Expansion
	for _, child := range children {
		if !seen.Add(child) {
			continue
		}
		at := len(found)
		found = append(found, Expansion{URL: child, Parent: url})
		if descendants := e.Expand(ctx, child, depth+1, seen); len(descendants) > 0 {
			found[at].Collection = true
			found = append(found, descendants...)
		}
	}
	return found
}

// CollectionChildren applies the homogeneity rule: metadata rows (level 1
// and below) are dropped and the rest must share a single level. Child URLs
// come back deduplicated in first-seen order, without url itself.
func CollectionChildren(url string, entries []ProbeEntry) []string {
	levels := make(map[int]struct{})
	var structural []ProbeEntry
	for _, entry := range entries {
		if entry.Level <= 1 {
			continue
		}
		levels[entry.Level] = struct{}{}
		structural = append(structural, entry)
	}
	if len(levels) != 1 {
		return nil
	}

	var children []string
	unique := make(map[string]struct{})
	for _, entry := range structural {
		content, ok := entry.Content.(string)
		if !ok || !strings.HasPrefix(content, "http") || content == url {
			continue
		}
		if _, dup := unique[content]; dup {
			continue
		}
		unique[content] = struct{}{}
		children = append(children, content)
	}
	return children
}
