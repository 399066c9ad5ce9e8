package model

import (
	"fmt"
	"sort"
	"strings"
)

// Sort orders models so every model follows its dependencies. Among models
// that are ready at the same time, name order is kept.
func Sort(models []Model) ([]Model, error) {
	index := make(map[string]int, len(models))
	for i, m := range models {
		index[strings.ToLower(m.Name)] = i
	}

	indegree := make([]int, len(models))
	dependents := make([][]int, len(models))
	for i, m := range models {
		for _, dep := range m.DependsOn {
			j, ok := index[strings.ToLower(dep)]
			if !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, m.Name, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range models {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	sorted := make([]Model, 0, len(models))
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool { return models[ready[a]].Name < models[ready[b]].Name })
		i := ready[0]
		ready = ready[1:]
		sorted = append(sorted, models[i])
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(sorted) != len(models) {
		var stuck []string
		for i, n := range indegree {
			if n > 0 {
				stuck = append(stuck, models[i].Name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return sorted, nil
}
