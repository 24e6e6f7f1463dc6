package library

import "fmt"

// NodeStatus is the lifecycle status of a roadmap feature.
type NodeStatus string

const (
	StatusDone       NodeStatus = "done"
	StatusPlanned    NodeStatus = "planned"
	StatusBacklog    NodeStatus = "backlog"
	StatusInProgress NodeStatus = "in progress"
)

const (
	// NodeTypeFeature is the only node type the roadmap knows about.
	NodeTypeFeature = "feature"
	// FeatureNodeKind is the rendering kind assigned to every added node.
	FeatureNodeKind = "featureNode"
)

func parseStatus(s string) (NodeStatus, error) {
	switch st := NodeStatus(s); st {
	case StatusDone, StatusPlanned, StatusBacklog, StatusInProgress:
		return st, nil
	}
	return "", fmt.Errorf("status must be one of done, planned, backlog, in progress; got %q", s)
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Comment is a remark attached to a roadmap feature.
type Comment struct {
	ID     string `json:"id" yaml:"id"`
	Author string `json:"author" yaml:"author"`
	Text   string `json:"text" yaml:"text"`
}

// FeatureData is the payload of a roadmap node.
type FeatureData struct {
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Status      NodeStatus `json:"status" yaml:"status"`
	NodeType    string     `json:"nodeType" yaml:"nodeType"`
	Upvotes     int        `json:"upvotes" yaml:"upvotes"`
	Comments    []Comment  `json:"comments" yaml:"comments"`
}

// FeatureNode is a roadmap entry.
type FeatureNode struct {
	ID       string      `json:"id" yaml:"id"`
	Kind     string      `json:"type,omitempty" yaml:"type,omitempty"`
	Position *Position   `json:"position,omitempty" yaml:"position,omitempty"`
	Data     FeatureData `json:"data" yaml:"data"`
}

func (n FeatureNode) ItemID() string { return n.ID }

// FeatureDataPatch holds the data fields of a changeNode call.
type FeatureDataPatch struct {
	Title       *string
	Description *string
	Status      *NodeStatus
	NodeType    *string
	Upvotes     *int
	Comments    []Comment
}

// NodePatch is the decoded argument of changeNode.
type NodePatch struct {
	ID       string
	Position *Position
	Data     FeatureDataPatch
}

// Merge shallow-merges the patch onto n. ID never changes.
func (p NodePatch) Merge(n FeatureNode) FeatureNode {
	if p.Position != nil {
		pos := *p.Position
		n.Position = &pos
	}
	d := p.Data
	if d.Title != nil {
		n.Data.Title = *d.Title
	}
	if d.Description != nil {
		n.Data.Description = *d.Description
	}
	if d.Status != nil {
		n.Data.Status = *d.Status
	}
	if d.NodeType != nil {
		n.Data.NodeType = *d.NodeType
	}
	if d.Upvotes != nil {
		n.Data.Upvotes = *d.Upvotes
	}
	if d.Comments != nil {
		n.Data.Comments = append([]Comment(nil), d.Comments...)
	}
	return n
}

// Edge connects two roadmap nodes.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

func (e Edge) ItemID() string { return e.ID }
