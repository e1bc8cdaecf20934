package routing

import (
	"context"
	"sync"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// HumanAgent describes one member of the support team available for
// escalated conversations.
type HumanAgent struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Skills    []string `yaml:"skills" json:"skills"`
	Languages []string `yaml:"languages" json:"languages"`
}

// RouteRequest carries the signals used to pick an agent.
type RouteRequest struct {
	ConversationID string
	TenantID       string
	Intent         string
	Language       string
	Urgency        models.UrgencyLevel
}

// Assignment is the routing outcome.
type Assignment struct {
	AgentID        string `json:"agent_id"`
	AgentName      string `json:"agent_name"`
	ConversationID string `json:"conversation_id"`
}

// SkillRouter assigns an escalated conversation to a human agent.
// Implementations must be safe for concurrent use.
type SkillRouter interface {
	Route(ctx context.Context, req RouteRequest) (*Assignment, error)
}

// StaticSkillRouter routes over a fixed roster, preferring agents that match
// the conversation's intent skill and language, breaking ties by least
// active load.
type StaticSkillRouter struct {
	mu     sync.Mutex
	agents []HumanAgent
	load   map[string]int
}

// NewStaticSkillRouter creates a router over the given roster. An empty
// roster routes nothing; callers treat a nil assignment as "no agent".
func NewStaticSkillRouter(agents []HumanAgent) *StaticSkillRouter {
	return &StaticSkillRouter{agents: agents, load: make(map[string]int)}
}

// NewSkillRouterFromConfig builds a static router over the configured
// roster. Returns nil for an empty roster so callers can leave the
// orchestrator dependency unset.
func NewSkillRouterFromConfig(roster []config.HumanAgentConfig) *StaticSkillRouter {
	if len(roster) == 0 {
		return nil
	}
	agents := make([]HumanAgent, 0, len(roster))
	for _, a := range roster {
		agents = append(agents, HumanAgent{
			ID:        a.ID,
			Name:      a.Name,
			Skills:    a.Skills,
			Languages: a.Languages,
		})
	}
	return NewStaticSkillRouter(agents)
}

func (r *StaticSkillRouter) Route(_ context.Context, req RouteRequest) (*Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *HumanAgent
	bestScore := -1
	for i := range r.agents {
		a := &r.agents[i]
		score := 0
		if hasString(a.Skills, req.Intent) {
			score += 2
		}
		if hasString(a.Languages, req.Language) {
			score++
		}
		if best == nil || score > bestScore ||
			(score == bestScore && r.load[a.ID] < r.load[best.ID]) {
			best = a
			bestScore = score
		}
	}
	if best == nil {
		return nil, nil
	}

	r.load[best.ID]++
	return &Assignment{
		AgentID:        best.ID,
		AgentName:      best.Name,
		ConversationID: req.ConversationID,
	}, nil
}

// Release decrements an agent's active load when a conversation closes.
func (r *StaticSkillRouter) Release(agentID string) {
	r.mu.Lock()
	if r.load[agentID] > 0 {
		r.load[agentID]--
	}
	r.mu.Unlock()
}

func hasString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
