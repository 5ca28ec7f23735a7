// pattern: Functional Core

package ui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"labkit/internal/lab"
)

const (
	branchMid  = "├── "
	branchLast = "└── "
	indentMid  = "│   "
	indentLast = "    "
)

// RenderTree draws node as an indented directory tree. Lines wider than
// width are truncated; width <= 0 disables truncation.
func (s *Styles) RenderTree(node lab.Node, width int) string {
	var lines []string
	lines = append(lines, s.treeLabel(node))
	s.appendChildren(&lines, node.Children, "")

	if width > 0 {
		for i, line := range lines {
			lines[i] = ansi.Truncate(line, width, "…")
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Styles) appendChildren(lines *[]string, children []lab.Node, prefix string) {
	for i, child := range children {
		branch, indent := branchMid, indentMid
		if i == len(children)-1 {
			branch, indent = branchLast, indentLast
		}
		*lines = append(*lines, s.DisabledStyle().Render(prefix+branch)+s.treeLabel(child))
		s.appendChildren(lines, child.Children, prefix+indent)
	}
}

func (s *Styles) treeLabel(node lab.Node) string {
	label := s.InfoStyle().Render(node.Name)
	if node.Dir {
		label = s.DirStyle().Render(node.Name + "/")
	}
	if node.Note != "" {
		label += "  " + s.SubtitleStyle().Render(node.Note)
	}
	return label
}

// RenderCommands lists command lines, one per line, under a heading.
func (s *Styles) RenderCommands(heading string, lines []string) string {
	out := []string{s.TitleStyle().Render(heading)}
	for _, line := range lines {
		out = append(out, "  "+s.DisabledStyle().Render("$ ")+s.CommandStyle().Render(line))
	}
	return strings.Join(out, "\n")
}
