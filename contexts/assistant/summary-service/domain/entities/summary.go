package entities

import "time"

type SummaryRecord struct {
	ID            string
	InputText     string
	OutputSummary string
	CreatedAt     time.Time
}
