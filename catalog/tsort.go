package catalog

// topologicalSort performs a dependency-respecting depth-first sort, reused
// directly from the teacher's schema/tsort.go (same three-color DFS idiom),
// generalized with Go generics. Used here to order DDL application when a
// batch of table registrations has foreign-key style inter-dependencies; an
// empty slice return means a circular dependency was found.
func topologicalSort[T any](items []T, dependencies map[string][]string, getID func(T) string) []T {
	var sorted []T
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	itemMap := make(map[string]T)

	for _, item := range items {
		itemMap[getID(item)] = item
	}

	var visit func(string) bool
	visit = func(id string) bool {
		if visiting[id] {
			return false
		}
		if visited[id] {
			return true
		}
		visiting[id] = true
		for _, dep := range dependencies[id] {
			if _, exists := itemMap[dep]; exists {
				if !visit(dep) {
					return false
				}
			}
		}
		visiting[id] = false
		visited[id] = true
		if item, exists := itemMap[id]; exists {
			sorted = append(sorted, item)
		}
		return true
	}

	for _, item := range items {
		id := getID(item)
		if !visited[id] {
			if !visit(id) {
				return []T{}
			}
		}
	}
	return sorted
}

// OrderTablesByForeignKeyDependency orders tables so a referenced table
// sorts before the table referencing it, using only refs (each table's
// qualified key mapped to the qualified keys of the tables it references);
// the tables' CHECK constraint text is not inspected.
func OrderTablesByForeignKeyDependency(tables []*TableSchema, refs map[string][]string) []*TableSchema {
	return topologicalSort(tables, refs, func(t *TableSchema) string { return qualifiedKey(t.SchemaName, t.Name) })
}
