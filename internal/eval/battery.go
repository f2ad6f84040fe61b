package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Case is one labeled evaluation question. Trap cases set ExpectRefusal:
// a correct system declines instead of fabricating an answer.
type Case struct {
	ID              string `yaml:"id"`
	Category        string `yaml:"category"`
	Difficulty      string `yaml:"difficulty"`
	Query           string `yaml:"query"`
	ReferenceAnswer string `yaml:"reference_answer,omitempty"`
	ExpectRefusal   bool   `yaml:"expect_refusal,omitempty"`
}

// BuiltinBattery returns the default labeled case set covering every
// question category the pipeline distinguishes.
func BuiltinBattery() []Case {
	return []Case{
		{
			ID:              "factual-1",
			Category:        "factual",
			Difficulty:      "easy",
			Query:           "Quelle est la capitale de la France?",
			ReferenceAnswer: "Paris est la capitale de la France.",
		},
		{
			ID:              "factual-2",
			Category:        "factual",
			Difficulty:      "medium",
			Query:           "What is the default port used by the metrics endpoint?",
			ReferenceAnswer: "The metrics endpoint listens on port 9090 by default.",
		},
		{
			ID:              "procedural-1",
			Category:        "procedural",
			Difficulty:      "medium",
			Query:           "How do I rotate the ingress TLS certificate?",
			ReferenceAnswer: "Update the certificate secret and restart the ingress controller to rotate the TLS certificate.",
		},
		{
			ID:              "procedural-2",
			Category:        "procedural",
			Difficulty:      "hard",
			Query:           "What are the steps to restore the analytics database from a backup?",
			ReferenceAnswer: "Stop writers, restore the latest snapshot, replay the write-ahead log, then verify row counts before reopening traffic.",
		},
		{
			ID:         "trap-1",
			Category:   "trap",
			Difficulty: "hard",
			Query:      "What did the CEO announce at the 2031 all-hands meeting?",
			// No source covers this; the correct outcome is a refusal.
			ExpectRefusal: true,
		},
		{
			ID:            "trap-2",
			Category:      "trap",
			Difficulty:    "hard",
			Query:         "Which version of the scheduler introduced quantum tunneling support?",
			ExpectRefusal: true,
		},
		{
			ID:              "temporal-1",
			Category:        "temporal",
			Difficulty:      "medium",
			Query:           "What changed in the deployment process last month?",
			ReferenceAnswer: "Last month the deployment process moved from manual approval to automated canary rollout.",
		},
		{
			ID:              "comparative-1",
			Category:        "comparative",
			Difficulty:      "medium",
			Query:           "What is the difference between the daily budget and the monthly budget?",
			ReferenceAnswer: "The daily budget caps spend per day while the monthly budget caps cumulative spend across the month; the tighter of the two applies.",
		},
		{
			ID:              "complex-1",
			Category:        "complex",
			Difficulty:      "hard",
			Query:           "Why does a circuit breaker open, and what happens to requests while it is open?",
			ReferenceAnswer: "The breaker opens after consecutive failures reach the threshold; while open, requests are rejected immediately and retried after the timeout in a half-open probe.",
		},
		{
			ID:              "complex-2",
			Category:        "complex",
			Difficulty:      "hard",
			Query:           "How does caching interact with rate limiting for repeated identical requests?",
			ReferenceAnswer: "Repeated identical requests hit the decision cache and return at zero cost, so they never count against the rate limit window.",
		},
	}
}

// LoadBattery reads labeled cases from a YAML file. The file holds a
// top-level `cases` list.
func LoadBattery(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read battery: %w", err)
	}
	var doc struct {
		Cases []Case `yaml:"cases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse battery: %w", err)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("battery %s has no cases", path)
	}
	for i, c := range doc.Cases {
		if c.ID == "" {
			return nil, fmt.Errorf("battery case %d missing id", i)
		}
		if c.Query == "" {
			return nil, fmt.Errorf("battery case %s missing query", c.ID)
		}
		if c.Category == "" {
			doc.Cases[i].Category = "factual"
		}
	}
	return doc.Cases, nil
}
