package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/maxvaer/dirscan/internal/scanner"
)

type treeNode struct {
	name     string
	children []*treeNode
}

func (n *treeNode) findOrCreate(name string) *treeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	child := &treeNode{name: name}
	n.children = append(n.children, child)
	return child
}

// PrintTree renders the paths of findings as a directory tree, e.g.
// "admin", "admin/config.php" and "js/app.js" become two branches under "/".
func PrintTree(w io.Writer, findings []scanner.Finding) {
	paths := make([]string, 0, len(findings))
	seen := make(map[string]bool, len(findings))
	for _, f := range findings {
		p := strings.Trim(f.Path, "/")
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	root := &treeNode{name: "/"}
	for _, p := range paths {
		node := root
		for _, part := range strings.Split(p, "/") {
			node = node.findOrCreate(part)
		}
	}

	fmt.Fprintf(w, "\n  Discovered paths:\n")
	printChildren(w, root, "  ")
}

func printChildren(w io.Writer, node *treeNode, prefix string) {
	for i, child := range node.children {
		isLast := i == len(node.children)-1
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, connector, child.name)
		nextPrefix := prefix + "│   "
		if isLast {
			nextPrefix = prefix + "    "
		}
		printChildren(w, child, nextPrefix)
	}
}
