package goals

import "math"

// Progress returns the completion of a big goal as an integer
// percentage, 0 for an empty checklist, rounded half-up otherwise.
func Progress(g *BigGoal) int {
	if g == nil || len(g.SmallGoals) == 0 {
		return 0
	}
	completed := 0
	for _, sg := range g.SmallGoals {
		if sg.Status == SmallGoalCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(g.SmallGoals))))
}

// MembersOf returns the group's member identifiers in join order.
func MembersOf(g *Group) []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.MemberIDs))
	copy(out, g.MemberIDs)
	return out
}

// IsOwner reports whether user owns the goal.
func IsOwner(g *BigGoal, userID string) bool {
	return g != nil && userID != "" && g.UserID == userID
}

// CanRedeemInvite reports whether user may join the group, i.e. is not
// already a member.
func CanRedeemInvite(g *Group, userID string) bool {
	if g == nil {
		return false
	}
	for _, m := range g.MemberIDs {
		if m == userID {
			return false
		}
	}
	return true
}

// BoardColumn holds one member's goals for the group board.
type BoardColumn struct {
	Owner *UserRef   `json:"user"`
	Goals []*BigGoal `json:"metas"`
}

// Board groups goals by owner for display. Input goals must already be
// in creation order (ascending identifier); owners appear in the order
// their first goal appears, which keeps the grouping stable across
// reloads. Goals without an embedded owner are skipped: they cannot be
// attributed to a column.
func Board(goalsInOrder []*BigGoal) []BoardColumn {
	index := make(map[string]int)
	var cols []BoardColumn
	for _, g := range goalsInOrder {
		if g == nil || g.Owner == nil {
			continue
		}
		i, ok := index[g.Owner.ID]
		if !ok {
			i = len(cols)
			index[g.Owner.ID] = i
			cols = append(cols, BoardColumn{Owner: g.Owner})
		}
		cols[i].Goals = append(cols[i].Goals, g)
	}
	return cols
}
