package catalogs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RawNodeType is the authored form of a node type.
type RawNodeType struct {
	ID       int       `json:"id"`
	Name     string    `json:"name,omitempty"`
	Variants []string  `json:"variants,omitempty"`
	Meta     *RawMeta  `json:"meta,omitempty"`
	Events   RawEvents `json:"events,omitempty"`
}

// RawMeta carries the legacy location of the glyph list.
type RawMeta struct {
	Characters []string `json:"tjs.characters,omitempty"`
	Variants   []string `json:"variants,omitempty"`
}

func (r RawNodeType) variants() []string {
	if len(r.Variants) > 0 {
		return r.Variants
	}
	if r.Meta != nil {
		if len(r.Meta.Variants) > 0 {
			return r.Meta.Variants
		}
		return r.Meta.Characters
	}
	return nil
}

// RawEvent is one authored rule, keyed by "trigger" or "trigger:dir,dir".
type RawEvent struct {
	Key        string            `json:"-"`
	Actions    []json.RawMessage `json:"actions"`
	Priority   int               `json:"priority,omitempty"`
	RelativeTo string            `json:"relativeTo,omitempty"`
}

// RawEvents keeps rules in declaration order.
type RawEvents []RawEvent

func (r *RawEvents) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("events: want object, got %v", tok)
	}
	var out RawEvents
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var ev RawEvent
		if err := dec.Decode(&ev); err != nil {
			return fmt.Errorf("events[%q]: %w", key, err)
		}
		ev.Key = key
		out = append(out, ev)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

func (r RawEvents) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ev := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ev.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseRuleKey splits "onKnocked:right,up" into its trigger and direction mask.
func ParseRuleKey(key string) (Trigger, Mask, error) {
	base, args, hasArgs := strings.Cut(key, ":")
	t, err := ParseTrigger(base)
	if err != nil {
		return 0, 0, err
	}
	var m Mask
	if hasArgs {
		for _, tok := range strings.Split(args, ",") {
			d, err := ParseDirection(strings.TrimSpace(tok))
			if err != nil {
				return 0, 0, fmt.Errorf("rule %q: %w", key, err)
			}
			m |= d.Bit()
		}
	}
	return t, m, nil
}

// ParseRule normalizes one authored rule.
func ParseRule(ev RawEvent) (Trigger, Rule, error) {
	t, mask, err := ParseRuleKey(ev.Key)
	if err != nil {
		return 0, Rule{}, err
	}
	frame, err := ParseFrame(ev.RelativeTo)
	if err != nil {
		return 0, Rule{}, fmt.Errorf("rule %q: %w", ev.Key, err)
	}
	rule := Rule{
		Actions:    make([]Action, 0, len(ev.Actions)),
		Priority:   ev.Priority,
		Mask:       mask,
		MaskBits:   mask.Count(),
		RelativeTo: frame,
	}
	for i, raw := range ev.Actions {
		a, err := ParseAction(raw)
		if err != nil {
			return 0, Rule{}, fmt.Errorf("rule %q action %d: %w", ev.Key, i, err)
		}
		rule.Actions = append(rule.Actions, a)
	}
	return t, rule, nil
}

// ParseNodeTypes converts authored definitions into node types with
// normalized, matchable rules grouped by trigger.
func ParseNodeTypes(raw []RawNodeType) ([]*NodeType, error) {
	out := make([]*NodeType, 0, len(raw))
	for _, r := range raw {
		variants := r.variants()
		if len(variants) == 0 {
			return nil, fmt.Errorf("node type %d (%s): %w", r.ID, r.Name, ErrNoVariants)
		}
		nt := &NodeType{
			ID:       r.ID,
			Name:     r.Name,
			Variants: append([]string(nil), variants...),
		}
		for t := range nt.Events {
			nt.Events[t] = []Rule{}
		}
		for _, ev := range r.Events {
			t, rule, err := ParseRule(ev)
			if err != nil {
				return nil, fmt.Errorf("node type %d (%s): %w", r.ID, r.Name, err)
			}
			nt.Events[t] = append(nt.Events[t], rule)
		}
		out = append(out, nt)
	}
	return out, nil
}
