package domain

// Summary is the dashboard overview.
type Summary struct {
	Projects             ProjectCounts  `json:"projects"`
	Services             ServiceCounts  `json:"services"`
	WorkItems            WorkItemCounts `json:"workItems"`
	HighPriorityProjects []Project      `json:"highPriorityProjects"`
	FailingServices      []Service      `json:"failingServices"`
}

// ProjectCounts aggregates project totals.
type ProjectCounts struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Live          int `json:"live"`
	InDevelopment int `json:"inDevelopment"`
}

// ServiceCounts aggregates service totals.
type ServiceCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	ByType   map[string]int `json:"byType"`
}

// WorkItemCounts aggregates work item totals.
type WorkItemCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}
