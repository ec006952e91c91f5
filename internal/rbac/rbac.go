package rbac

// Role constants
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleCreator  = "creator"
)

// Permission constants
const (
	PermCreateCampaign  = "create_campaign"
	PermViewCampaign    = "view_campaign"
	PermOverrideStatus  = "override_status"
	PermRetryPurchase   = "retry_purchase"
	PermTriggerRefunds  = "trigger_refunds"
	PermRunReconcile    = "run_reconcile"
	PermViewAudit       = "view_audit"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermCreateCampaign, PermViewCampaign, PermOverrideStatus,
		PermRetryPurchase, PermTriggerRefunds, PermRunReconcile, PermViewAudit,
	},
	RoleOperator: {
		PermViewCampaign, PermRetryPurchase, PermRunReconcile, PermViewAudit,
		// Operator CANNOT: PermOverrideStatus, PermTriggerRefunds
	},
	RoleCreator: {
		PermCreateCampaign, PermViewCampaign,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
