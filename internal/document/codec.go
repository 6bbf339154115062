// Package document encodes monthly aggregates as textual documents with a
// YAML frontmatter header and a rendered Markdown body, and parses the
// header back. Encoding and decoding are pure and synchronous; all byte
// I/O belongs to the store.
package document

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tinyland-inc/tinyland-analytics/internal/analytics"
)

// Delimiter bounds the frontmatter block at the top of every document.
const Delimiter = "---"

// Field is one ordered header entry.
type Field struct {
	Key   string
	Value any
}

// Header is the decoded frontmatter mapping. Nested breakdown fields
// (topPaths, eventTypes, activityTypes) decode to []any / map[string]any.
type Header map[string]any

// String returns a string field, or "" when absent or differently typed.
func (h Header) String(key string) string {
	s, _ := h[key].(string)
	return s
}

// Int returns an integer field, or 0 when absent.
func (h Header) Int(key string) int {
	switch v := h[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Decimal returns a numeric field as an exact decimal, or zero when absent.
func (h Header) Decimal(key string) decimal.Decimal {
	switch v := h[key].(type) {
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// CountMap returns a nested count-map field (eventTypes, activityTypes).
func (h Header) CountMap(key string) map[string]int64 {
	raw, ok := h[key].(map[string]any)
	if !ok {
		return nil
	}
	counts := make(map[string]int64, len(raw))
	for name, v := range raw {
		counts[name] = toInt64(v)
	}
	return counts
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

// List returns a nested sequence field (topPaths).
func (h Header) List(key string) []any {
	l, _ := h[key].([]any)
	return l
}

// HeaderFields returns the ordered frontmatter fields for an aggregate:
// base fields first, then the category breakdown, then overrides sorted
// by key. Round-tripping requires key/value fidelity, not order.
func HeaderFields(agg analytics.MonthlyAggregate, overrides map[string]any) []Field {
	fields := []Field{
		{Key: "type", Value: string(agg.Category)},
		{Key: "year", Value: agg.Year},
		{Key: "month", Value: int(agg.Month)},
		{Key: "totalCount", Value: agg.TotalCount},
		{Key: "uniqueCount", Value: agg.UniqueCount},
		{Key: "averageDaily", Value: agg.AverageDaily},
		{Key: "peakDay", Value: agg.PeakDay},
		{Key: "peakHour", Value: agg.PeakHour},
		{Key: "lastUpdated", Value: agg.LastUpdated.Format(time.RFC3339)},
	}
	if agg.BreakdownField != "" {
		fields = append(fields, Field{Key: agg.BreakdownField, Value: agg.Breakdown})
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: overrides[k]})
	}
	return fields
}

// Encode serializes an aggregate into a full document: frontmatter header
// followed by the rendered body.
func Encode(agg analytics.MonthlyAggregate, overrides map[string]any) ([]byte, error) {
	header, err := marshalHeader(HeaderFields(agg, overrides))
	if err != nil {
		return nil, fmt.Errorf("failed to encode document header: %w", err)
	}

	var b strings.Builder
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	b.Write(header)
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	b.WriteByte('\n')
	b.WriteString(Render(agg))
	return []byte(b.String()), nil
}

// Decode parses the frontmatter header and returns it together with the raw
// body after the closing delimiter. A document without a leading delimiter
// block yields a nil header and no error; readers treat that as not-found.
func Decode(data []byte) (Header, string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, Delimiter+"\n") {
		return nil, "", nil
	}

	rest := text[len(Delimiter)+1:]
	end := strings.Index(rest, "\n"+Delimiter)
	if end < 0 {
		return nil, "", nil
	}

	block := rest[:end+1]
	body := rest[end+1:]
	if cut := strings.Index(body, "\n"); cut >= 0 {
		body = body[cut+1:]
	} else {
		body = ""
	}

	header := Header{}
	if err := yaml.Unmarshal([]byte(block), &header); err != nil {
		return nil, "", fmt.Errorf("failed to decode document header: %w", err)
	}
	return header, body, nil
}

// marshalHeader emits the fields as a YAML mapping preserving insertion
// order. Strings are double-quoted; numbers and booleans are bare.
func marshalHeader(fields []Field) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}
		valNode, err := encodeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		quoteStrings(valNode)
		root.Content = append(root.Content, keyNode, valNode)
	}
	return yaml.Marshal(root)
}

// encodeValue builds the YAML node for one header value. Decimals become
// native ints when integral, floats otherwise; count maps are emitted with
// stable key order.
func encodeValue(v any) (*yaml.Node, error) {
	node := &yaml.Node{}
	switch d := v.(type) {
	case decimal.Decimal:
		if d.IsInteger() {
			return node, node.Encode(d.IntPart())
		}
		f, _ := d.Float64()
		return node, node.Encode(f)
	case map[string]int64:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		node.Kind = yaml.MappingNode
		for _, k := range keys {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
			valNode := &yaml.Node{}
			if err := valNode.Encode(d[k]); err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valNode)
		}
		return node, nil
	}
	return node, node.Encode(v)
}

// quoteStrings forces double-quoted style on every string scalar value in a
// tree. Mapping keys stay bare.
func quoteStrings(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!str" {
			n.Style = yaml.DoubleQuotedStyle
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			quoteStrings(n.Content[i])
		}
	default:
		for _, c := range n.Content {
			quoteStrings(c)
		}
	}
}
