package domain

import "time"

// PublicSummary: анонимное представление снапшота (без записей и команд).
type PublicSummary struct {
	Metrics     AggregateMetrics `json:"metrics"`
	Metadata    Metadata         `json:"metadata"`
	Trend       Trend            `json:"trend"`
	LoadedAt    time.Time        `json:"loaded_at"`
	LastSuccess time.Time        `json:"last_success"`
	Loading     bool             `json:"loading"`
}

// Regression: KSI, который перешел в failed относительно предыдущего снапшота.
type Regression struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Reason      string    `json:"reason"`
	DetectedAt  time.Time `json:"detected_at"`
}
