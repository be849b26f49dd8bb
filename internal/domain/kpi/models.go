package kpi

import (
	"time"

	"apar/internal/domain/weights"
)

type Project struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Department   string              `json:"department"`
	Location     string              `json:"location"`
	Category     string              `json:"category"`
	Weights      []weights.KPIWeight `json:"weights"`
	WeightOrigin string              `json:"weightOrigin"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Location    string `json:"location"`
	Category    string `json:"category"`
}

type Employee struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Designation     string               `json:"designation"`
	Type            weights.EmployeeType `json:"type"`
	ActiveProjectID string               `json:"activeProjectId,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
}

type EmployeeInput struct {
	Name        string               `json:"name"`
	Designation string               `json:"designation"`
	Type        weights.EmployeeType `json:"type"`
}

// Record is one KPI document owned by an employee. Default records form the
// per-type template; project-specific records are clones of the template
// reweighted for one project.
type Record struct {
	ID                string    `json:"id"`
	EmployeeID        string    `json:"employeeId"`
	KPIName           string    `json:"kpiName"`
	Description       string    `json:"description"`
	Unit              string    `json:"unit"`
	Target            float64   `json:"target"`
	AchievedValue     float64   `json:"achievedValue"`
	Score             float64   `json:"score"`
	Weightage         float64   `json:"weightage"`
	OriginalWeightage float64   `json:"originalWeightage"`
	Status            string    `json:"status"`
	IsDefault         bool      `json:"isDefault"`
	IsProjectSpecific bool      `json:"isProjectSpecific"`
	ProjectID         string    `json:"projectId,omitempty"`
	ProjectName       string    `json:"projectName,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type DailyReport struct {
	ID         string             `json:"id"`
	EmployeeID string             `json:"employeeId"`
	ProjectID  string             `json:"projectId"`
	ReportDate time.Time          `json:"reportDate"`
	Summary    string             `json:"summary"`
	Progress   map[string]float64 `json:"progress"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type DailyReportInput struct {
	ProjectID  string             `json:"projectId"`
	ReportDate time.Time          `json:"reportDate"`
	Summary    string             `json:"summary"`
	Progress   map[string]float64 `json:"progress"`
}

type ApplyResult struct {
	ProjectID    string   `json:"projectId"`
	ProjectName  string   `json:"projectName"`
	EmployeeID   string   `json:"employeeId"`
	EmployeeName string   `json:"employeeName"`
	UpdatedCount int      `json:"updatedCount"`
	DeletedCount int      `json:"deletedCount"`
	Records      []Record `json:"records"`
}

type RecalcResult struct {
	ReportID   string             `json:"reportId"`
	EmployeeID string             `json:"employeeId"`
	ProjectID  string             `json:"projectId"`
	Updated    int                `json:"updated"`
	Created    int                `json:"created"`
	Skipped    []string           `json:"skipped,omitempty"`
	Weights    map[string]float64 `json:"weights"`
}

type Preview struct {
	ProjectID    string              `json:"projectId"`
	ProjectName  string              `json:"projectName"`
	WeightOrigin string              `json:"weightOrigin"`
	FieldWeights map[string]float64  `json:"fieldWeights"`
	HQWeights    map[string]float64  `json:"hqWeights"`
	FieldTotal   weights.TotalResult `json:"fieldTotal"`
	HQTotal      weights.TotalResult `json:"hqTotal"`
	FieldRange   weights.RangeResult `json:"fieldRange"`
	HQRange      weights.RangeResult `json:"hqRange"`
	Valid        bool                `json:"valid"`
}

type Analysis struct {
	ProjectID      string              `json:"projectId"`
	Weights        []weights.KPIWeight `json:"weights"`
	Origin         string              `json:"origin"`
	FallbackReason string              `json:"fallbackReason,omitempty"`
	Rejected       []string            `json:"rejected,omitempty"`
	FieldTotal     weights.TotalResult `json:"fieldTotal"`
	HQTotal        weights.TotalResult `json:"hqTotal"`
	Valid          bool                `json:"valid"`
}

type ScoreItem struct {
	KPIName   string  `json:"kpiName"`
	Weightage float64 `json:"weightage"`
	Score     float64 `json:"score"`
	Weighted  float64 `json:"weighted"`
}

type ScoreCard struct {
	EmployeeID   string      `json:"employeeId"`
	Scope        string      `json:"scope"`
	ProjectID    string      `json:"projectId,omitempty"`
	FinalScore   float64     `json:"finalScore"`
	Grade        string      `json:"grade"`
	Renormalized bool        `json:"renormalized"`
	Items        []ScoreItem `json:"items"`
}

type ScopeReport struct {
	EmployeeID      string   `json:"employeeId"`
	ActiveProjectID string   `json:"activeProjectId,omitempty"`
	Consistent      bool     `json:"consistent"`
	StrayRecords    []Record `json:"strayRecords,omitempty"`
	DuplicateNames  []string `json:"duplicateNames,omitempty"`
	Total           float64  `json:"total"`
}

type RolloutFailure struct {
	EmployeeID string `json:"employeeId"`
	Error      string `json:"error"`
}

type RolloutResult struct {
	ProjectID string           `json:"projectId"`
	Members   int              `json:"members"`
	Applied   int              `json:"applied"`
	Failed    []RolloutFailure `json:"failed,omitempty"`
}
