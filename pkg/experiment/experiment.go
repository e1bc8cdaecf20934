// Package experiment is a small deterministic A/B engine. Assignments are
// stable per conversation so a customer never flips variants mid-thread.
package experiment

import (
	"hash/fnv"
	"sync"
)

// Variant is one arm of an experiment.
type Variant struct {
	Value  string
	Weight int // relative weight, must be > 0 to receive traffic
}

// Experiment overrides a single parameter for a slice of conversations.
type Experiment struct {
	Name      string
	Parameter string // e.g. "prompt_version"
	Variants  []Variant
}

// Engine assigns variants deterministically by hashing the experiment name
// and conversation ID, and caches assignments for fast repeat lookups.
type Engine struct {
	mu          sync.RWMutex
	experiments []Experiment
	assignments map[string]string // experimentName + "|" + conversationID -> value
}

// NewEngine builds an engine over a fixed experiment set. Experiments with
// no positively weighted variant are ignored.
func NewEngine(experiments []Experiment) *Engine {
	var active []Experiment
	for _, exp := range experiments {
		if exp.Name == "" || exp.Parameter == "" {
			continue
		}
		if totalWeight(exp.Variants) > 0 {
			active = append(active, exp)
		}
	}
	return &Engine{experiments: active, assignments: make(map[string]string)}
}

// Lookup returns the override value for a parameter, if any experiment
// targets it. The same conversation always gets the same variant.
func (e *Engine) Lookup(parameter, conversationID string) (string, bool) {
	if e == nil || conversationID == "" {
		return "", false
	}
	e.mu.RLock()
	exp, ok := e.find(parameter)
	if !ok {
		e.mu.RUnlock()
		return "", false
	}
	key := exp.Name + "|" + conversationID
	if value, cached := e.assignments[key]; cached {
		e.mu.RUnlock()
		return value, true
	}
	e.mu.RUnlock()

	value := assign(exp, conversationID)
	e.mu.Lock()
	e.assignments[key] = value
	e.mu.Unlock()
	return value, true
}

// PromptVersion returns the prompt version for a conversation, falling back
// to the tenant default when no experiment targets it.
func (e *Engine) PromptVersion(conversationID, fallback string) string {
	if value, ok := e.Lookup("prompt_version", conversationID); ok {
		return value
	}
	return fallback
}

func (e *Engine) find(parameter string) (Experiment, bool) {
	for _, exp := range e.experiments {
		if exp.Parameter == parameter {
			return exp, true
		}
	}
	return Experiment{}, false
}

// assign picks a variant by reducing a stable hash into the weight space.
func assign(exp Experiment, conversationID string) string {
	h := fnv.New32a()
	h.Write([]byte(exp.Name))
	h.Write([]byte{0})
	h.Write([]byte(conversationID))
	bucket := int(h.Sum32() % uint32(totalWeight(exp.Variants)))

	for _, v := range exp.Variants {
		if v.Weight <= 0 {
			continue
		}
		if bucket < v.Weight {
			return v.Value
		}
		bucket -= v.Weight
	}
	return exp.Variants[len(exp.Variants)-1].Value
}

func totalWeight(variants []Variant) int {
	total := 0
	for _, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	return total
}
