package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		protectedResourcesPolicy(),
		removalBudgetPolicy(),
		largeCapturePolicy(),
	}
}

// protectedResourcesPolicy denies destructive operations on protected targets.
func protectedResourcesPolicy() Policy {
	return Policy{
		Name:        "protected-resources",
		Description: "Protected resources may not be removed, reset or disabled",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package hostsync.policies.protected

import rego.v1

destructive := {"remove", "reset", "disable"}

deny contains violation if {
	some op in input.operations
	destructive[op.verb]
	some pattern in input.params.protected
	glob.match(pattern, null, op.target)

	violation := {
		"message": sprintf("%s of protected resource %s", [op.verb, op.target]),
		"subsystem": op.subsystem,
		"target": op.target,
	}
}`,
	}
}

// removalBudgetPolicy denies plans removing more than params.max_removals resources.
func removalBudgetPolicy() Policy {
	return Policy{
		Name:        "removal-budget",
		Description: "Limits how many resources a single plan may remove",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package hostsync.policies.removals

import rego.v1

removals := [op | some op in input.operations; op.verb == "remove"]

deny contains violation if {
	input.params.max_removals > 0
	count(removals) > input.params.max_removals

	violation := {
		"message": sprintf("plan removes %d resources, more than the allowed %d", [count(removals), input.params.max_removals]),
	}
}`,
	}
}

// largeCapturePolicy warns when a capture would record many resources at once.
func largeCapturePolicy() Policy {
	return Policy{
		Name:        "large-capture",
		Description: "Warns when a capture records more than 100 resources",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package hostsync.policies.capture

import rego.v1

tracked := count([op | some op in input.operations; op.verb == "track"])

deny contains violation if {
	input.kind == "capture"
	tracked > 100

	violation := {
		"message": sprintf("capture records %d resources; review the user manifest afterwards", [tracked]),
	}
}`,
	}
}
