package auth

const (
	RoleEmployee         = "Employee"
	RoleReportingOfficer = "ReportingOfficer"
	RoleAdmin            = "Admin"
	RoleSystemAdmin      = "SystemAdmin"
)

const (
	PermKPIRead           = "kpi.read"
	PermKPIProjectsWrite  = "kpi.projects.write"
	PermKPIAnalyze        = "kpi.analyze"
	PermKPIApply          = "kpi.apply"
	PermKPIEmployeesWrite = "kpi.employees.write"
	PermKPIReportsWrite   = "kpi.reports.write"
	PermAuditRead         = "audit.read"
	PermSystemAdmin       = "admin.system"
)

var DefaultPermissions = []string{
	PermKPIRead,
	PermKPIProjectsWrite,
	PermKPIAnalyze,
	PermKPIApply,
	PermKPIEmployeesWrite,
	PermKPIReportsWrite,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermKPIRead,
		PermKPIReportsWrite,
	},
	RoleReportingOfficer: {
		PermKPIRead,
		PermKPIReportsWrite,
		PermKPIAnalyze,
		PermKPIApply,
	},
	RoleAdmin: {
		PermKPIRead,
		PermKPIProjectsWrite,
		PermKPIAnalyze,
		PermKPIApply,
		PermKPIEmployeesWrite,
		PermKPIReportsWrite,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermSystemAdmin,
		PermAuditRead,
	},
}

// KnownRole reports whether name is one of the built-in roles.
func KnownRole(name string) bool {
	_, ok := RolePermissions[name]
	return ok
}
