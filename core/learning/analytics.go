package learning

import "sort"

// Bucket is one bar of an analytics breakdown.
type Bucket struct {
	Label string
	Count int
	// Percent of the total, rounded down.
	Percent int
}

// CountBy groups items by key and returns the buckets sorted by count (desc) then label.
func CountBy[T any](items []T, key func(T) string) []Bucket {
	counts := make(map[string]int)
	for _, item := range items {
		label := key(item)
		if label == "" {
			label = "unknown"
		}
		counts[label]++
	}
	buckets := make([]Bucket, 0, len(counts))
	for label, count := range counts {
		buckets = append(buckets, Bucket{Label: label, Count: count, Percent: count * 100 / len(items)})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Label < buckets[j].Label
	})
	return buckets
}

func GoalsByStatus(goals []Goal) []Bucket {
	return CountBy(goals, func(g Goal) string { return g.Status })
}

func ActivitiesByType(activities []Activity) []Bucket {
	return CountBy(activities, func(a Activity) string { return a.Type })
}

func TotalHours(activities []Activity) float64 {
	var total float64
	for _, a := range activities {
		total += a.Hours()
	}
	return total
}

// CompletionRate is the share of completed goals, in percent.
func CompletionRate(goals []Goal) int {
	if len(goals) == 0 {
		return 0
	}
	var done int
	for _, g := range goals {
		if g.Status == GoalCompleted {
			done++
		}
	}
	return done * 100 / len(goals)
}
