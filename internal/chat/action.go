package chat

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Action is one directive the agent may embed in its responses.
type Action struct {
	Name           string `yaml:"name"`
	RequiresObject bool   `yaml:"requiresObject"`
}

// ActionEvent is a resolved action directive. Object is empty for actions
// that take no target.
type ActionEvent struct {
	Action string
	Object string
}

// actionTagRe matches the embedded directive markup in generated text.
var actionTagRe = regexp.MustCompile(`\[\[action: (.*?)\]\]`)

// ActionParser resolves [[action: ...]] tags against the configured action
// and object vocabularies. Read-only after construction.
type ActionParser struct {
	actions []Action // sorted by descending name length for longest-prefix match
	objects []string
	log     *slog.Logger
}

// NewActionParser builds a parser over the given vocabularies.
func NewActionParser(actions []Action, objects []string, log *slog.Logger) *ActionParser {
	if log == nil {
		log = slog.Default()
	}
	sorted := make([]Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Name) > len(sorted[j].Name)
	})
	return &ActionParser{actions: sorted, objects: objects, log: log}
}

// Parse extracts every resolvable action directive from text, in order of
// appearance. Unmatched directives are logged and dropped.
func (p *ActionParser) Parse(text string) []ActionEvent {
	var events []ActionEvent
	for _, m := range actionTagRe.FindAllStringSubmatch(text, -1) {
		payload := strings.TrimSpace(m[1])
		if payload == "" {
			continue
		}
		ev, ok := p.resolve(payload)
		if !ok {
			p.log.Warn("chat: dropping unresolvable action directive", "payload", payload)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// resolve matches the payload against the vocabularies: the longest action
// name that prefixes the payload wins, then the remainder is matched against
// the object vocabulary when the action needs a target.
func (p *ActionParser) resolve(payload string) (ActionEvent, bool) {
	lower := strings.ToLower(payload)
	for _, a := range p.actions {
		name := strings.ToLower(a.Name)
		if !strings.HasPrefix(lower, name) {
			continue
		}
		rest := strings.TrimSpace(payload[len(name):])
		if !a.RequiresObject {
			return ActionEvent{Action: a.Name}, true
		}
		obj, ok := p.matchObject(rest)
		if !ok {
			return ActionEvent{}, false
		}
		return ActionEvent{Action: a.Name, Object: obj}, true
	}
	return ActionEvent{}, false
}

// matchObject finds the configured object named in rest. An exact match
// wins; otherwise the longest object mentioned anywhere in rest (so "to the
// door" still resolves "door").
func (p *ActionParser) matchObject(rest string) (string, bool) {
	lower := strings.ToLower(rest)
	var best string
	for _, o := range p.objects {
		ol := strings.ToLower(o)
		if lower == ol {
			return o, true
		}
		if strings.Contains(lower, ol) && len(o) > len(best) {
			best = o
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// Catalog renders the instruction block appended to the system message so
// the model knows which directives it may emit and how to format them.
func (p *ActionParser) Catalog() string {
	if len(p.actions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("You can perform the following actions by embedding a tag " +
		"of the form [[action: <command>]] in your reply:\n")
	for _, a := range p.actions {
		if a.RequiresObject {
			fmt.Fprintf(&b, "- %s <object>: requires a target object\n", a.Name)
		} else {
			fmt.Fprintf(&b, "- %s\n", a.Name)
		}
	}
	if len(p.objects) > 0 {
		b.WriteString("Known objects: " + strings.Join(p.objects, ", ") + "\n")
	}
	b.WriteString("Only use listed actions and objects. The tag is removed before your reply is spoken.")
	return b.String()
}
