// Package triage turns reported symptoms into a preliminary diagnosis by
// walking a fixed binary decision tree, one yes/no question at a time.
package triage

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

//go:embed default_tree.yaml
var defaultTreeYAML []byte

// Node is one entry of the decision table: either a question with a child
// per answer or a terminal diagnosis with no children.
type Node struct {
	ID        string   `yaml:"-" json:"id"`
	Question  string   `yaml:"question,omitempty" json:"question,omitempty"`
	IfYes     string   `yaml:"if_yes,omitempty" json:"if_yes,omitempty"`
	IfNo      string   `yaml:"if_no,omitempty" json:"if_no,omitempty"`
	Diagnosis string   `yaml:"diagnosis,omitempty" json:"diagnosis,omitempty"`
	Symptoms  []string `yaml:"symptoms,omitempty" json:"symptoms,omitempty"`
}

// Terminal reports whether the node carries a diagnosis.
func (n Node) Terminal() bool {
	return n.Diagnosis != ""
}

func (n Node) child(a Answer) string {
	if a == Yes {
		return n.IfYes
	}
	return n.IfNo
}

// Table is the declarative form of a decision tree.
type Table struct {
	Root  string          `yaml:"root"`
	Nodes map[string]Node `yaml:"nodes"`
}

// DefaultTable returns the built-in clinical table.
func DefaultTable() (Table, error) {
	return decodeTable(defaultTreeYAML)
}

// LoadTable decodes a YAML table from r.
func LoadTable(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read decision table: %w", err)
	}
	return decodeTable(data)
}

// LoadTableFile decodes a YAML table from path. An empty path yields the
// built-in table.
func LoadTableFile(path string) (Table, error) {
	if path == "" {
		return DefaultTable()
	}
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open decision table %s: %w", path, err)
	}
	defer f.Close()
	return LoadTable(f)
}

func decodeTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("decode decision table: %v: %w", err, apperr.ErrConfiguration)
	}
	for id, n := range t.Nodes {
		n.ID = id
		t.Nodes[id] = n
	}
	return t, nil
}

// Tree is an immutable, validated decision tree shared by every session.
type Tree struct {
	root  string
	nodes map[string]Node
}

// NewTree validates table and builds a Tree from it. Every problem found
// is reported, each wrapping apperr.ErrConfiguration.
func NewTree(table Table) (*Tree, error) {
	if err := Validate(table); err != nil {
		return nil, err
	}
	nodes := make(map[string]Node, len(table.Nodes))
	for id, n := range table.Nodes {
		n.ID = id
		n.Symptoms = append([]string(nil), n.Symptoms...)
		nodes[id] = n
	}
	return &Tree{root: table.Root, nodes: nodes}, nil
}

// DefaultTree builds the built-in clinical tree.
func DefaultTree() (*Tree, error) {
	t, err := DefaultTable()
	if err != nil {
		return nil, err
	}
	return NewTree(t)
}

// Validate checks that every node is well formed, every reference
// resolves, the graph is acyclic and every node is reachable from the root.
func Validate(table Table) error {
	var problems []error
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format+": %w", append(args, apperr.ErrConfiguration)...))
	}

	if table.Root == "" {
		report("decision table has no root")
	} else if _, ok := table.Nodes[table.Root]; !ok {
		report("root %q is not a node", table.Root)
	}

	ids := make([]string, 0, len(table.Nodes))
	for id := range table.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := table.Nodes[id]
		hasChildren := n.IfYes != "" || n.IfNo != ""
		switch {
		case n.Diagnosis != "" && (hasChildren || n.Question != ""):
			report("node %q has a diagnosis and a question or children", id)
		case n.Diagnosis == "" && strings.TrimSpace(n.Question) == "":
			report("node %q has neither question nor diagnosis", id)
		case n.Diagnosis == "" && (n.IfYes == "" || n.IfNo == ""):
			report("node %q must have both a yes and a no child", id)
		}
		for _, child := range []string{n.IfYes, n.IfNo} {
			if child == "" {
				continue
			}
			if _, ok := table.Nodes[child]; !ok {
				report("node %q points at unknown node %q", id, child)
			}
		}
	}

	if len(problems) == 0 {
		const (
			unvisited = iota
			visiting
			done
		)
		state := make(map[string]int, len(table.Nodes))
		var visit func(id string)
		visit = func(id string) {
			switch state[id] {
			case visiting:
				report("cycle through node %q", id)
				return
			case done:
				return
			}
			state[id] = visiting
			n := table.Nodes[id]
			if !n.Terminal() {
				visit(n.IfYes)
				visit(n.IfNo)
			}
			state[id] = done
		}
		visit(table.Root)
		for _, id := range ids {
			if state[id] == unvisited {
				report("node %q is unreachable from root %q", id, table.Root)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid decision tree: %w", errors.Join(problems...))
	}
	return nil
}

// Root returns the id of the root node.
func (t *Tree) Root() string { return t.root }

// Node looks up a node by id.
func (t *Tree) Node(id string) (Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Cursor marks a position inside a walk. The zero value is not valid.
type Cursor struct {
	NodeID string `json:"node_id"`
	Depth  int    `json:"depth"`
}

// Result is the terminal outcome of a walk.
type Result struct {
	NodeID    string   `json:"node_id"`
	Diagnosis string   `json:"diagnosis"`
	Severity  Severity `json:"severity"`
	Depth     int      `json:"depth"`
}

// Step is the outcome of one Answer: either the next cursor or a result.
type Step struct {
	Next   Cursor
	Result *Result
}

// Done reports whether the step reached a diagnosis.
func (s Step) Done() bool { return s.Result != nil }

// Walk starts a walk at the given question node; an empty id means the root.
func (t *Tree) Walk(start string) (Cursor, error) {
	if start == "" {
		start = t.root
	}
	n, ok := t.nodes[start]
	if !ok {
		return Cursor{}, fmt.Errorf("start node %q: %w", start, apperr.ErrNotFound)
	}
	if n.Terminal() {
		return Cursor{}, fmt.Errorf("start node %q is a diagnosis: %w", start, apperr.ErrInvalidState)
	}
	return Cursor{NodeID: start}, nil
}

// Question returns the question text at c.
func (t *Tree) Question(c Cursor) string {
	return t.nodes[c.NodeID].Question
}

// Answer moves the cursor along the branch matching a. A missing branch is
// a configuration error; the walk never falls back to the other child.
func (t *Tree) Answer(c Cursor, a Answer) (Step, error) {
	n, ok := t.nodes[c.NodeID]
	if !ok {
		return Step{}, fmt.Errorf("cursor at unknown node %q: %w", c.NodeID, apperr.ErrConfiguration)
	}
	if n.Terminal() {
		return Step{}, fmt.Errorf("node %q is already a diagnosis: %w", n.ID, apperr.ErrInvalidState)
	}
	childID := n.child(a)
	if childID == "" {
		return Step{}, fmt.Errorf("node %q has no %q branch: %w", n.ID, a, apperr.ErrConfiguration)
	}
	child, ok := t.nodes[childID]
	if !ok {
		return Step{}, fmt.Errorf("node %q %q branch points at unknown node %q: %w", n.ID, a, childID, apperr.ErrConfiguration)
	}
	depth := c.Depth + 1
	if child.Terminal() {
		return Step{Result: &Result{
			NodeID:    child.ID,
			Diagnosis: child.Diagnosis,
			Severity:  SeverityOf(child.Diagnosis),
			Depth:     depth,
		}}, nil
	}
	return Step{Next: Cursor{NodeID: child.ID, Depth: depth}}, nil
}

// Depth returns the number of questions on the longest root-to-diagnosis path.
func (t *Tree) Depth() int {
	var depth func(id string) int
	depth = func(id string) int {
		n := t.nodes[id]
		if n.Terminal() {
			return 0
		}
		return 1 + max(depth(n.IfYes), depth(n.IfNo))
	}
	return depth(t.root)
}

// Path is one root-to-diagnosis route through the tree.
type Path struct {
	Answers   []Answer `json:"answers"`
	Questions []string `json:"questions"`
	Result    Result   `json:"result"`
}

// Paths enumerates every route through the tree, yes branches first.
func (t *Tree) Paths() []Path {
	var out []Path
	var walk func(id string, answers []Answer, questions []string)
	walk = func(id string, answers []Answer, questions []string) {
		n := t.nodes[id]
		if n.Terminal() {
			out = append(out, Path{
				Answers:   append([]Answer(nil), answers...),
				Questions: append([]string(nil), questions...),
				Result: Result{
					NodeID:    n.ID,
					Diagnosis: n.Diagnosis,
					Severity:  SeverityOf(n.Diagnosis),
					Depth:     len(answers),
				},
			})
			return
		}
		q := append(questions, n.Question)
		walk(n.IfYes, append(answers, Yes), q)
		walk(n.IfNo, append(answers, No), q)
	}
	walk(t.root, nil, nil)
	return out
}
