// Package classify maps transactions to a (protocol, category, action) triple.
//
// Classification is total and pure: every transaction yields a result, unknown
// transactions resolve to the sentinel (unknown, other, unknown).
package classify

import (
	"strings"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// Unknown is the classification of transactions no registry entry matches.
var Unknown = model.Classification{
	Protocol: model.UnknownProtocol,
	Category: model.CategoryOther,
	Action:   model.ActionUnknown,
}

// Classifier classifies transactions against a Registry.
type Classifier struct {
	reg *Registry
}

// New creates a classifier; a nil registry selects the embedded one.
func New(reg *Registry) *Classifier {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Classifier{reg: reg}
}

// Classify walks the calls in order and returns the first package or module match.
func (c *Classifier) Classify(tx model.TransactionRecord) model.Classification {
	for _, call := range tx.MoveCalls {
		if p, ok := c.reg.ByPackage(call.Package); ok {
			return c.matched(p, call)
		}
		// module names are only consulted when the package is unknown
		if p, ok := c.reg.ByModule(call.Module); ok {
			return c.matched(p, call)
		}
	}
	return Unknown
}

func (c *Classifier) matched(p ProtocolInfo, call model.MoveCall) model.Classification {
	return model.Classification{
		Protocol: p.Name,
		Category: p.Category,
		Action:   c.Action(call.Function),
	}
}

// Action derives the action kind from a function name; first keyword hit wins.
func (c *Classifier) Action(function string) model.ActionKind {
	fn := strings.ToLower(function)
	for _, rule := range c.reg.actions {
		if strings.Contains(fn, rule.Keyword) {
			return rule.Action
		}
	}
	return model.ActionOther
}

// DisplayName returns the human readable protocol name.
func (c *Classifier) DisplayName(protocol string) string {
	if p, ok := c.reg.Protocol(protocol); ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return titleCase(protocol)
}

func titleCase(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
