package accounts

import "context"

// Tree produces the parent->children forest for reporting. Roots keep the
// repository's code ordering; children do as well.
func (s *Service) Tree(ctx context.Context) ([]*TreeNode, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make(map[int64]*TreeNode, len(all))
	for _, account := range all {
		nodes[account.ID] = &TreeNode{Account: account}
	}
	var roots []*TreeNode
	for _, account := range all {
		node := nodes[account.ID]
		if account.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*account.ParentID]
		if !ok {
			// Orphaned parent reference: surface as a root rather than drop.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots, nil
}
