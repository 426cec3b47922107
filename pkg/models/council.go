package models

import "time"

// Agent is a directory record for one council participant. The council
// engine only reads agents; their lifecycle is owned elsewhere.
type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Expertise    []string `json:"expertise"`
	HarmonyScore float64  `json:"harmony_score"` // 0-100
}

// SessionStatus is the lifecycle state of a council session.
type SessionStatus string

const (
	StatusPending          SessionStatus = "pending"
	StatusDeliberating     SessionStatus = "deliberating"
	StatusConsensusReached SessionStatus = "consensus_reached"
	StatusNoConsensus      SessionStatus = "no_consensus"
	StatusFailed           SessionStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusConsensusReached, StatusNoConsensus, StatusFailed:
		return true
	}
	return false
}

// VoteChoice is an agent's discrete decision.
type VoteChoice string

const (
	VoteApprove     VoteChoice = "approve"
	VoteReject      VoteChoice = "reject"
	VoteAbstain     VoteChoice = "abstain"
	VoteConditional VoteChoice = "conditional"
)

// CouncilSession is one deliberation run over a single query.
type CouncilSession struct {
	ID                  string        `json:"id"`
	Query               string        `json:"query"`
	QueryType           string        `json:"query_type"`
	Status              SessionStatus `json:"status"`
	ConsensusThreshold  float64       `json:"consensus_threshold"`
	FinalRecommendation string        `json:"final_recommendation,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
}

// Deliberation is one agent's reasoned position within a session.
// Immutable once written; keyed by (session, agent, phase).
type Deliberation struct {
	SessionID  string    `json:"session_id"`
	AgentID    string    `json:"agent_id"`
	Phase      string    `json:"phase"`
	Content    string    `json:"content"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence"` // clamped to [0,1]
	References []string  `json:"references,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Vote is an agent's formal decision derived from its deliberation.
type Vote struct {
	SessionID  string     `json:"session_id"`
	AgentID    string     `json:"agent_id"`
	Choice     VoteChoice `json:"vote"`
	Reasoning  string     `json:"reasoning"`
	Confidence float64    `json:"confidence"`
	Conditions []string   `json:"conditions,omitempty"`
	// Blocking marks a conditional vote whose conditions must be met
	// before it can count toward approval.
	Blocking  bool      `json:"blocking,omitempty"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteResult is the aggregated outcome for a session. Exactly one per
// session, written together with the terminal status.
type VoteResult struct {
	SessionID           string  `json:"session_id"`
	TotalVotes          int     `json:"total_votes"`
	Approvals           int     `json:"approvals"`
	Rejections          int     `json:"rejections"`
	Abstentions         int     `json:"abstentions"`
	Conditionals        int     `json:"conditionals"`
	WeightedApproval    float64 `json:"weighted_approval"`
	ConsensusReached    bool    `json:"consensus_reached"`
	FinalRecommendation string  `json:"final_recommendation"`
}

// CouncilSessionDetail is the full read-back of a session and its
// artifacts.
type CouncilSessionDetail struct {
	Session       CouncilSession `json:"session"`
	Participants  []Agent        `json:"participants"`
	Deliberations []Deliberation `json:"deliberations"`
	Votes         []Vote         `json:"votes"`
	Result        *VoteResult    `json:"result,omitempty"`
}

// MessageType classifies a collaboration message.
type MessageType string

const (
	MessageRequest   MessageType = "request"
	MessageResponse  MessageType = "response"
	MessageBroadcast MessageType = "broadcast"
	MessageQuery     MessageType = "query"
	MessageData      MessageType = "data"
	MessageDecision  MessageType = "decision"
)

// CollaborationMessage is one entry in the ordered log of an
// agent-to-agent collaboration run. ToAgent empty means broadcast.
type CollaborationMessage struct {
	ID               string         `json:"id"`
	CollaborationID  string         `json:"collaboration_id"`
	FromAgent        string         `json:"from_agent"`
	ToAgent          string         `json:"to_agent,omitempty"`
	Type             MessageType    `json:"type"`
	Content          string         `json:"content"`
	Context          map[string]any `json:"context,omitempty"`
	RequiresResponse bool           `json:"requires_response"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Collaboration records the outcome of one auto-detected collaboration.
type Collaboration struct {
	ID               string    `json:"id"`
	Query            string    `json:"query"`
	PrimaryAgentID   string    `json:"primary_agent_id"`
	Outcome          string    `json:"outcome"`
	Confidence       float64   `json:"confidence"`
	ConsensusReached bool      `json:"consensus_reached"`
	CreatedAt        time.Time `json:"created_at"`
}
