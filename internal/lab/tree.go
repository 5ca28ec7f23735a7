// pattern: Functional Core

package lab

// Node is one entry of the directory tree Create produces.
type Node struct {
	Name     string
	Dir      bool
	Note     string
	Children []Node
}

// Tree describes the lab directory as Create leaves it.
func (l *Lab) Tree() Node {
	root := Node{Name: l.Name, Dir: true, Note: l.Dir.Path()}

	for _, f := range l.Files.List() {
		root.Children = append(root.Children, Node{Name: f.Name()})
	}
	root.Children = append(root.Children,
		Node{Name: GitDir, Dir: true, Note: "moved from the skeleton clone"},
		Node{Name: SkeletonDir, Dir: true, Note: "clone of " + l.RemoteName + ":" + l.Remote.SkeletonDir + "/" + l.Name},
	)

	for _, p := range l.Parts {
		part := Node{Name: p.Name, Dir: true, Note: p.FullName}
		for _, f := range p.Files.List() {
			part.Children = append(part.Children, Node{Name: f.Name()})
		}
		root.Children = append(root.Children, part)
	}

	return root
}
