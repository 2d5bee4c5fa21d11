// Package policy gates plans with Open Policy Agent (OPA) Rego policies.
//
// Before a plan is executed its description is evaluated against every enabled
// policy. The input document is:
//
//	{
//	  "kind": "apply",
//	  "operations": [{"subsystem": "system", "verb": "remove", "target": "package:htop"}],
//	  "params": {"protected": ["package:kernel*"], "max_removals": 10}
//	}
//
// A policy is a Rego module with a "deny" set rule. Each element is either a
// message string or an object with "message" and optionally "severity",
// "subsystem" and "target". Violations of severity error or critical deny the
// plan; warning and info violations are reported only.
//
// Built-in policies protect configured resources from removal, enforce a
// removal budget, and warn about very large captures. Additional .rego or .json
// policy files are loaded from a directory.
package policy
