// Package workflow implements the Workflow Repository (C4) and the
// Workflow Engine (C5): graph persistence, traversal, gateway evaluation,
// and execution/step bookkeeping.
package workflow

import "time"

// NodeBehavior distinguishes the three roles a Node Type can play.
type NodeBehavior string

const (
	BehaviorEvent   NodeBehavior = "EVENT"
	BehaviorGateway NodeBehavior = "GATEWAY"
	BehaviorTask    NodeBehavior = "TASK"
)

// NodeType is the catalog row governing how the engine interprets a node
// shape. Looked up by ShapeName at every engine step; callers should cache.
type NodeType struct {
	ID                   int64        `db:"node_type_id" json:"def_node_type_id"`
	ShapeName            string       `db:"shape_name" json:"shape_name"`
	Behavior             NodeBehavior `db:"behavior" json:"behavior"`
	DisplayName          string       `db:"display_name" json:"display_name"`
	RequiresStepFunction bool         `db:"requires_step_function" json:"requires_step_function"`
	Description          string       `db:"description" json:"description"`
}

// NodeAttribute is a design-time pre-bound {name, value} pair on a Node.
type NodeAttribute struct {
	Name  string `json:"attribute_name"`
	Value any    `json:"attribute_value"`
}

// NodeData is the `data` object of a graph Node.
type NodeData struct {
	Type         string          `json:"type"`
	StepFunction string          `json:"step_function,omitempty"`
	Label        string          `json:"label"`
	Attributes   []NodeAttribute `json:"attributes,omitempty"`
}

// Node is one vertex of a process structure.
type Node struct {
	ID   string   `json:"id"`
	Data NodeData `json:"data"`
}

// EdgeCondition guards a GATEWAY outgoing edge.
type EdgeCondition struct {
	Field     string `json:"field"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// EdgeData wraps the optional condition.
type EdgeData struct {
	Condition *EdgeCondition `json:"condition,omitempty"`
}

// Edge is one directed connection between two Nodes.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Data   EdgeData `json:"data,omitempty"`
}

// Structure is the `process_structure` JSON blob: the graph itself.
type Structure struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Process is a named, persisted Workflow graph.
type Process struct {
	ProcessID   int64     `json:"process_id"`
	ProcessName string    `json:"process_name"`
	Structure   Structure `json:"process_structure"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by"`
}

// ExecutionStatus is the Execution state machine's state.
type ExecutionStatus string

const (
	ExecutionQueued    ExecutionStatus = "QUEUED"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// IsTerminal reports whether status is an absorbing state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// Execution is one run of a Process.
type Execution struct {
	ExecutionID  int64           `json:"def_process_execution_id"`
	ProcessID    *int64          `json:"process_id,omitempty"`
	Status       ExecutionStatus `json:"execution_status"`
	InputData    map[string]any  `json:"input_data,omitempty"`
	OutputData   map[string]any  `json:"output_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartDate    time.Time       `json:"execution_start_date"`
	EndDate      *time.Time      `json:"execution_end_date,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
	UpdatedBy    string          `json:"updated_by,omitempty"`
}

// StepStatus is the per-node visit outcome.
type StepStatus string

const (
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepPassed    StepStatus = "passed"
	StepSkipped   StepStatus = "skipped"
)

// Step is one node visit within an Execution.
type Step struct {
	StepID       int64          `json:"def_execution_step_id"`
	ExecutionID  int64          `json:"def_process_execution_id"`
	NodeID       string         `json:"node_id"`
	NodeLabel    string         `json:"node_label"`
	Status       StepStatus     `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartDate    time.Time      `json:"execution_start_date"`
	EndDate      *time.Time     `json:"execution_end_date,omitempty"`
}
