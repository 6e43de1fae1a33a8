package model

// All lists every table in creation order. Parents precede children so
// foreign keys resolve on a fresh database.
func All() []any {
	return []any{
		&Installation{},
		&ReviewTask{},
		&ReviewTaskLog{},
		&ReviewResult{},
	}
}
