// Package pricing resolves model identifiers against the LiteLLM price
// catalog and computes usage costs. Lookup is layered: exact match,
// provider-prefixed match, canonical-name candidates, then fuzzy
// containment in both directions. A model that resolves nowhere costs
// nothing rather than failing the run.
package pricing

import (
	"regexp"
	"sort"
	"strings"
)

// ModelPrice holds per-token USD rates for one catalog entry. Field names
// follow the LiteLLM catalog schema.
type ModelPrice struct {
	Input      float64 `json:"input_cost_per_token"`
	Output     float64 `json:"output_cost_per_token"`
	CacheRead  float64 `json:"cache_read_input_token_cost"`
	CacheWrite float64 `json:"cache_creation_input_token_cost"`
}

// Catalog is an immutable price table keyed by lowercased model name.
type Catalog struct {
	prices map[string]ModelPrice
	keys   []string // sorted, so fuzzy matches are deterministic
}

// NewCatalog builds a catalog from raw price data. Keys are lowercased.
func NewCatalog(prices map[string]ModelPrice) *Catalog {
	c := &Catalog{prices: make(map[string]ModelPrice, len(prices))}
	for key, price := range prices {
		c.prices[strings.ToLower(key)] = price
	}
	c.keys = make([]string, 0, len(c.prices))
	for key := range c.prices {
		c.keys = append(c.keys, key)
	}
	sort.Strings(c.keys)
	return c
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.prices)
}

// providerPrefixes are tried for bare model names, most common vendors
// first so e.g. "gpt-5" finds "openai/gpt-5" without a scan.
var providerPrefixes = []string{
	"openai/", "anthropic/", "google/", "meta-llama/", "mistralai/",
	"deepseek/", "qwen/", "cohere/", "perplexity/", "x-ai/",
}

// modelAliases maps vendor-internal codenames to their public catalog
// names.
var modelAliases = map[string]string{
	"big-pickle": "glm-4.7",
}

// fuzzyBlocklist holds catalog base names too generic to ever fuzzy-match
// against; they would swallow unrelated queries.
var fuzzyBlocklist = map[string]bool{
	"auto": true,
	"mini": true,
	"chat": true,
	"base": true,
}

const minFuzzyLen = 5

// tierSuffixes are capability or billing markers appended to model names
// that never appear in catalog keys.
var tierSuffixes = []string{
	"-low", "-high", "-medium", "-free",
	":low", ":high", ":medium", ":free",
}

var dateSuffixRE = regexp.MustCompile(`-20\d{6}$`)

// vendorWords are leading name segments that some catalogs drop, e.g.
// "claude-sonnet-4-5" is listed as "anthropic/sonnet-4-5".
var vendorWords = map[string]bool{
	"claude": true,
	"gemini": true,
}

// Resolve finds the price entry for a model identifier. The second return
// is false when no layer produced a match.
func (c *Catalog) Resolve(modelID string) (ModelPrice, bool) {
	query := strings.ToLower(strings.TrimSpace(modelID))
	if query == "" {
		return ModelPrice{}, false
	}
	if alias, ok := modelAliases[query]; ok {
		query = alias
	}

	if price, ok := c.resolve(query); ok {
		return price, true
	}
	if stripped := stripTierSuffix(query); stripped != query {
		return c.resolve(stripped)
	}
	return ModelPrice{}, false
}

func (c *Catalog) resolve(query string) (ModelPrice, bool) {
	if price, ok := c.prices[query]; ok {
		return price, true
	}
	for _, prefix := range providerPrefixes {
		if price, ok := c.prices[prefix+query]; ok {
			return price, true
		}
	}

	candidates := canonicalCandidates(query)
	for _, cand := range candidates {
		if price, ok := c.prices[cand]; ok {
			return price, true
		}
		for _, prefix := range providerPrefixes {
			if price, ok := c.prices[prefix+cand]; ok {
				return price, true
			}
		}
	}

	for _, q := range append([]string{query}, candidates...) {
		if price, ok := c.fuzzyForward(q); ok {
			return price, true
		}
	}
	return c.fuzzyReverse(query)
}

// canonicalCandidates derives alternative spellings of a query: the name
// with any trailing release date removed, plus the same with a leading
// vendor word dropped.
func canonicalCandidates(query string) []string {
	base := dateSuffixRE.ReplaceAllString(query, "")
	base = strings.TrimSuffix(base, "-latest")

	var candidates []string
	if base != query {
		candidates = append(candidates, base)
	}
	if head, rest, ok := strings.Cut(base, "-"); ok && vendorWords[head] && rest != "" {
		candidates = append(candidates, rest)
	}
	return candidates
}

func stripTierSuffix(query string) string {
	for _, suffix := range tierSuffixes {
		if trimmed, ok := strings.CutSuffix(query, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return query
}

// fuzzyForward matches when a catalog entry's base name occurs inside the
// query at token boundaries, e.g. query "eu.anthropic.claude-opus-4"
// against catalog key "anthropic/claude-opus-4".
func (c *Catalog) fuzzyForward(query string) (ModelPrice, bool) {
	if len(query) < minFuzzyLen {
		return ModelPrice{}, false
	}
	for _, key := range c.keys {
		base := baseName(key)
		if len(base) < minFuzzyLen || fuzzyBlocklist[base] {
			continue
		}
		if containsToken(query, base) {
			return c.prices[key], true
		}
	}
	return ModelPrice{}, false
}

// fuzzyReverse matches when the query occurs inside a catalog entry's
// base name, covering truncated vendor identifiers.
func (c *Catalog) fuzzyReverse(query string) (ModelPrice, bool) {
	if len(query) < minFuzzyLen || fuzzyBlocklist[query] {
		return ModelPrice{}, false
	}
	for _, key := range c.keys {
		if containsToken(baseName(key), query) {
			return c.prices[key], true
		}
	}
	return ModelPrice{}, false
}

func baseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// containsToken reports whether needle occurs in haystack with
// non-alphanumeric characters (or string edges) on both sides.
func containsToken(haystack, needle string) bool {
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(needle)
		leftOK := i == 0 || !isAlphaNum(haystack[i-1])
		rightOK := end == len(haystack) || !isAlphaNum(haystack[end])
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
}

func isAlphaNum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
