package domain

import "time"

type Issue struct {
	Key     string
	Summary string
	Status  string
}

type SprintStat struct {
	Sprint      string
	CommittedSP float64
	AchievedSP  float64
}

type Instance struct {
	ID         string
	Name       string
	Type       string
	State      string
	PrivateIP  string
	LaunchedAt time.Time
}

// AverageAchieved returns the mean achieved story points, or 0 for no stats.
func AverageAchieved(stats []SprintStat) float64 {
	if len(stats) == 0 {
		return 0
	}

	var total float64
	for _, stat := range stats {
		total += stat.AchievedSP
	}
	return total / float64(len(stats))
}

// GroupIssuesByStatus keeps statuses in first-seen order.
func GroupIssuesByStatus(issues []Issue) ([]string, map[string][]Issue) {
	order := make([]string, 0)
	groups := make(map[string][]Issue)
	for _, issue := range issues {
		status := issue.Status
		if status == "" {
			status = "Unknown"
		}
		if _, ok := groups[status]; !ok {
			order = append(order, status)
		}
		groups[status] = append(groups[status], issue)
	}
	return order, groups
}

// MonthCost is the unblended spend of one calendar month.
type MonthCost struct {
	Year   int
	Month  time.Month
	Amount float64
	Unit   string
}

func (c MonthCost) Period() string {
	return time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
