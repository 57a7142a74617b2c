package client

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	llmstream "github.com/jinyang6/chatanyllm"
)

// Rule routes matching requests to a provider before the fixed table is
// consulted. When is an expr expression evaluated against the request; the
// first rule that evaluates to true wins.
//
// The expression environment exposes:
//
//	Provider  the request's provider identifier ("openai", ...)
//	Model     the requested model identifier
//
// Example: route every Claude model to the Anthropic provider regardless of
// what the request asked for:
//
//	Rule{When: `Model startsWith "claude"`, Provider: "anthropic"}
type Rule struct {
	When     string `yaml:"when"`
	Provider string `yaml:"provider"`
}

// RuleEnv is the expression environment for routing rules.
type RuleEnv struct {
	Provider string
	Model    string
}

type compiledRule struct {
	when     string
	program  *vm.Program
	provider llmstream.ProviderID
}

func (c *Client) addRule(r Rule) error {
	if r.When == "" || r.Provider == "" {
		return fmt.Errorf("routing rule needs both 'when' and 'provider'")
	}

	program, err := expr.Compile(r.When, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return fmt.Errorf("failed to compile rule expression %q: %w", r.When, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, compiledRule{
		when:     r.When,
		program:  program,
		provider: llmstream.ProviderID(r.Provider),
	})
	return nil
}

// applyRules evaluates routing rules in order and returns the first matching
// provider override. Evaluation errors disable the offending rule for the
// request and are logged, never surfaced to the caller.
func (c *Client) applyRules(req *llmstream.StreamRequest) (llmstream.ProviderID, bool) {
	c.mu.Lock()
	rules := c.rules
	c.mu.Unlock()

	if len(rules) == 0 {
		return "", false
	}

	env := RuleEnv{Provider: req.Provider.String(), Model: req.Model}
	for _, r := range rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			c.logger.Warn("routing rule failed to evaluate", "when", r.when, "error", err)
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			c.logger.Debug("routing rule matched", "when", r.when, "provider", r.provider)
			return r.provider, true
		}
	}
	return "", false
}
