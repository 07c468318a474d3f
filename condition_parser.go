package permit

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/oarkflow/date"
)

// ParseCondition parses one compact condition string into its native
// condition value. The supported forms cover the condition kinds the
// evaluator knows:
//
//	time:<start>..<end>     either bound may be empty (open range)
//	ip:<entry>[,<entry>]    exact addresses or CIDR blocks
//	attr:<key>=<value>      value is JSON when it parses, else a string
//	custom:<name>[{json}]   optional JSON object of handler params
//
// Time bounds accept anything date.Parse understands. Attribute
// values written as JSON numbers decode as float64, matching how
// request attributes arrive from JSON payloads.
func ParseCondition(s string) (Condition, error) {
	s = strings.TrimSpace(s)
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("unsupported condition syntax: %s", s)
	}
	rest = strings.TrimSpace(rest)

	switch kind {
	case condTypeTimeRange, "time":
		return parseTimeRange(rest)
	case condTypeIPRange, "ip":
		return parseIPRange(rest)
	case condTypeAttribute, "attr":
		return parseAttribute(rest)
	case condTypeCustom:
		return parseCustom(rest)
	default:
		return nil, fmt.Errorf("unsupported condition syntax: %s", s)
	}
}

// ParseConditions parses a list of compact condition strings. The
// first failure aborts with the offending string in the error.
func ParseConditions(specs []string) (Conditions, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	conds := make(Conditions, 0, len(specs))
	for _, spec := range specs {
		c, err := ParseCondition(spec)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func parseTimeRange(s string) (Condition, error) {
	from, to, ok := strings.Cut(s, "..")
	if !ok {
		return nil, fmt.Errorf("time condition: want <start>..<end>, got %q", s)
	}
	c := TimeRangeCondition{}
	if from = strings.TrimSpace(from); from != "" {
		t, err := date.Parse(from)
		if err != nil {
			return nil, fmt.Errorf("time condition: parse start %q: %w", from, err)
		}
		c.Start = t
	}
	if to = strings.TrimSpace(to); to != "" {
		t, err := date.Parse(to)
		if err != nil {
			return nil, fmt.Errorf("time condition: parse end %q: %w", to, err)
		}
		c.End = t
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return nil, fmt.Errorf("time condition: end %s before start %s", c.End, c.Start)
	}
	return c, nil
}

func parseIPRange(s string) (Condition, error) {
	entries := splitList(s)
	if len(entries) == 0 {
		return nil, fmt.Errorf("ip condition: no entries in %q", s)
	}
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return nil, fmt.Errorf("ip condition: invalid CIDR %q", entry)
			}
		} else if net.ParseIP(entry) == nil {
			return nil, fmt.Errorf("ip condition: invalid address %q", entry)
		}
	}
	return IPRangeCondition{Allowed: entries}, nil
}

func parseAttribute(s string) (Condition, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return nil, fmt.Errorf("attribute condition: want <key>=<value>, got %q", s)
	}
	raw = strings.TrimSpace(raw)
	var expected any
	if err := json.Unmarshal([]byte(raw), &expected); err != nil {
		expected = raw
	}
	return AttributeCondition{Key: key, Expected: expected}, nil
}

func parseCustom(s string) (Condition, error) {
	name := s
	var params map[string]any
	if idx := strings.Index(s, "{"); idx >= 0 {
		name = strings.TrimSpace(s[:idx])
		if err := json.Unmarshal([]byte(s[idx:]), &params); err != nil {
			return nil, fmt.Errorf("custom condition: invalid params %q: %w", s[idx:], err)
		}
	}
	if name == "" {
		return nil, fmt.Errorf("custom condition: name is required")
	}
	return CustomCondition{Name: name, Params: params}, nil
}

// splitList splits comma separated entries, trimming whitespace and
// dropping empties.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
