package folder

// Entry is anything carrying a folder path: a check (Key = check id) or a declared empty folder (Key = "").
type Entry struct {
	Key  string
	Path string
}

type Move struct {
	Key  string
	From string
	To   string
}

// PlanRename computes every path rewrite caused by renaming from to to.
// All rewrites are validated before any is returned, so a rejected plan touches nothing.
func PlanRename(entries []Entry, from, to string, lim Limits) ([]Move, error) {
	from, to = Normalize(from), Normalize(to)
	if from == "" || to == "" {
		return nil, ErrEmptyPath
	}
	if from == to {
		return nil, ErrSameFolder
	}
	if HasPrefix(to, from) {
		return nil, ErrIntoDescendant
	}
	if err := Validate(to, lim); err != nil {
		return nil, err
	}

	moves := make([]Move, 0)
	for _, e := range entries {
		if !HasPrefix(e.Path, from) {
			continue
		}
		next := SubstitutePrefix(e.Path, from, to)
		if err := Validate(next, lim); err != nil {
			return nil, err
		}
		moves = append(moves, Move{Key: e.Key, From: e.Path, To: next})
	}
	if len(moves) == 0 {
		return nil, ErrFolderNotExists
	}
	return moves, nil
}

// PlanDelete removes target and lifts everything below it one level up.
// Entries sitting directly in target move to its parent ("" for a top level target).
func PlanDelete(entries []Entry, target string) ([]Move, error) {
	target = Normalize(target)
	if target == "" {
		return nil, ErrEmptyPath
	}
	parent := Parent(target)

	moves := make([]Move, 0)
	for _, e := range entries {
		if !HasPrefix(e.Path, target) {
			continue
		}
		moves = append(moves, Move{Key: e.Key, From: e.Path, To: SubstitutePrefix(e.Path, target, parent)})
	}
	if len(moves) == 0 {
		return nil, ErrFolderNotExists
	}
	return moves, nil
}
