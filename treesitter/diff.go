package treesitter

// fullDiff describes a tree parsed from scratch: everything is affected.
func fullDiff(tree *Tree) *TreeDiff {
	return &TreeDiff{
		IsFullReparse: true,
		AffectedKinds: subtreeKinds(tree.RootNode(), make(map[string]bool)),
	}
}

// diffTrees builds the diff between an edited tree and the tree re-parsed
// from it. Every changed range contributes the kinds below its smallest
// enclosing node and that node's outermost named ancestor below the root.
func diffTrees(edited, reparsed *Tree) *TreeDiff {
	diff := &TreeDiff{
		ChangedRanges: edited.ChangedRanges(reparsed),
		AffectedKinds: make(map[string]bool),
	}
	root := reparsed.RootNode()
	if root.IsNull() {
		return diff
	}

	for _, r := range diff.ChangedRanges {
		node := root.DescendantForRange(r.StartByte, r.EndByte)
		subtreeKinds(node, diff.AffectedKinds)

		scope := outermostNamed(node)
		known := false
		for _, n := range diff.AffectedNodes {
			known = known || n.Equal(scope)
		}
		if !known {
			diff.AffectedNodes = append(diff.AffectedNodes, scope)
		}
	}
	return diff
}

// outermostNamed returns the outermost named ancestor of node that is not
// the root, node itself when there is none.
func outermostNamed(node Node) Node {
	scope := node
	for p := node.Parent(); !p.IsNull() && !p.Parent().IsNull(); p = p.Parent() {
		if p.IsNamed() {
			scope = p
		}
	}
	return scope
}

// subtreeKinds adds the type of node and of every descendant to kinds.
func subtreeKinds(node Node, kinds map[string]bool) map[string]bool {
	walkSubtree(node, func(n Node) {
		kinds[n.Type()] = true
	})
	return kinds
}
