package kpi

const (
	RecordStatusNotStarted = "not_started"
	RecordStatusInProgress = "in_progress"
	RecordStatusAchieved   = "achieved"

	ScopeDefault = "default"
	ScopeProject = "project"

	GradeOutstanding  = "Outstanding"
	GradeVeryGood     = "Very Good"
	GradeGood         = "Good"
	GradeAverage      = "Average"
	GradeBelowAverage = "Below Average"

	JobProjectRollout = "kpi_project_rollout"

	EventWeightsApplied     = "kpi.weights.applied"
	EventReportRecalculated = "kpi.report.recalculated"
	EventProjectCreated     = "kpi.project.created"
	EventWeightsRegenerated = "kpi.project.weights_regenerated"
)
