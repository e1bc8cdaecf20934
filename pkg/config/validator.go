package config

import (
	"fmt"
)

// validator performs post-load validation on a Config.
type validator struct {
	cfg  *Config
	errs []error
}

func newValidator(cfg *Config) *validator {
	return &validator{cfg: cfg}
}

func (v *validator) validateAll() error {
	v.validateLLM()
	v.validateDispatch()
	v.validateHealth()
	v.validateTools()
	v.validateSLA()
	v.validateAgents()
	v.validateTenants()

	if len(v.errs) > 0 {
		return fmt.Errorf("%d validation error(s), first: %w", len(v.errs), v.errs[0])
	}
	return nil
}

func (v *validator) addError(component, id, field string, err error) {
	v.errs = append(v.errs, NewValidationError(component, id, field, err))
}

func (v *validator) validateLLM() {
	llm := v.cfg.LLM
	if llm.Model == "" {
		v.addError("llm", llm.Provider, "model", ErrMissingRequiredField)
	}
	if llm.Timeout <= 0 {
		v.addError("llm", llm.Provider, "timeout", ErrInvalidValue)
	}
}

func (v *validator) validateDispatch() {
	d := v.cfg.Dispatch
	if d.WorkerCount <= 0 {
		v.addError("dispatch", "dispatch", "worker_count", ErrInvalidValue)
	}
	if d.MailboxDepth <= 0 {
		v.addError("dispatch", "dispatch", "mailbox_depth", ErrInvalidValue)
	}
	if d.MessageTimeout <= 0 {
		v.addError("dispatch", "dispatch", "message_timeout", ErrInvalidValue)
	}
}

func (v *validator) validateHealth() {
	h := v.cfg.Health
	if h.FailureThreshold < 2 {
		v.addError("health", "health", "failure_threshold", ErrInvalidValue)
	}
	if h.CircuitReset <= 0 {
		v.addError("health", "health", "circuit_reset", ErrInvalidValue)
	}
}

func (v *validator) validateTools() {
	t := v.cfg.Tools
	if t.ExecutionTimeout <= 0 {
		v.addError("tools", "tools", "execution_timeout", ErrInvalidValue)
	}
}

func (v *validator) validateSLA() {
	for name, tier := range v.cfg.SLA.Tiers {
		if tier.FirstResponse <= 0 {
			v.addError("sla_tier", name, "first_response", ErrInvalidValue)
		}
		if tier.Resolution <= 0 {
			v.addError("sla_tier", name, "resolution", ErrInvalidValue)
		}
	}
}

func (v *validator) validateAgents() {
	for i, a := range v.cfg.Agents {
		if a.ID == "" {
			v.addError("agent", fmt.Sprintf("agents[%d]", i), "id", ErrMissingRequiredField)
		}
	}
}

func (v *validator) validateTenants() {
	for _, id := range v.cfg.Tenants.IDs() {
		t, _ := v.cfg.Tenants.Get(id)
		if t.Escalation.MaxClarifications < 1 {
			v.addError("tenant", id, "escalation.max_clarifications", ErrInvalidValue)
		}
		if t.Escalation.SentimentEscalationThreshold < -1 || t.Escalation.SentimentEscalationThreshold > 0 {
			v.addError("tenant", id, "escalation.sentiment_escalation_threshold", ErrInvalidValue)
		}
		for ch, p := range t.ChannelPolicies {
			if p != nil && p.MaxTurnsBeforeEscalation <= 0 {
				v.addError("tenant", id, fmt.Sprintf("channel_policies.%s.max_turns_before_escalation", ch), ErrInvalidValue)
			}
		}
	}
}
