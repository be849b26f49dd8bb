package auth

import (
	"context"
	"testing"
)

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestStaticPermissions(t *testing.T) {
	perms := StaticPermissions{}
	ctx := context.Background()

	cases := []struct {
		role string
		perm string
		want bool
	}{
		{RoleAdmin, PermKPIProjectsWrite, true},
		{RoleReportingOfficer, PermKPIApply, true},
		{RoleEmployee, PermKPIApply, false},
		{RoleEmployee, PermKPIReportsWrite, true},
		{"Unknown", PermKPIRead, false},
	}
	for _, tc := range cases {
		got, err := perms.HasPermission(ctx, tc.role, tc.perm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("%s/%s: expected %v, got %v", tc.role, tc.perm, tc.want, got)
		}
	}
}
