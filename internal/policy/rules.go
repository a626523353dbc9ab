package policy

import (
	"fmt"

	"github.com/petrel-mail/petrel/internal/taxonomy"
)

// PermissionResult is the outcome of a permission check. Allowed and Error
// are a value pair so checks compose without exception paths.
type PermissionResult struct {
	Allowed bool
	Error   string
}

func allow() PermissionResult {
	return PermissionResult{Allowed: true}
}

func deny(format string, args ...any) PermissionResult {
	return PermissionResult{Allowed: false, Error: fmt.Sprintf(format, args...)}
}

// delegateAllowedCategories is the fixed set of categories a delegate may
// invoke. SEND and CALENDAR_WRITE are deliberately absent: a delegate can
// prepare work (drafts, replies held as drafts) but not irreversibly act on
// the owner's behalf.
var delegateAllowedCategories = map[taxonomy.Category]bool{
	taxonomy.CategoryEmailRead:    true,
	taxonomy.CategoryContacts:     true,
	taxonomy.CategoryCalendarRead: true,
	taxonomy.CategoryInboxManage:  true,
	taxonomy.CategoryDraft:        true,
	taxonomy.CategoryReply:        true,
	taxonomy.CategoryMeta:         true,
}

// delegateDenialHints steers a denied delegate toward a permitted
// alternative where one exists. Keyed by operation name.
var delegateDenialHints = map[string]string{
	"send_email":            "Use create_draft to prepare the message for the mailbox owner to review and send.",
	"reply_to_email":        "Call reply_to_email without sendImmediately to save the reply as a draft instead.",
	"create_calendar_event": "Ask the mailbox owner to create the event, or prepare the details in a draft email.",
	"update_calendar_event": "Ask the mailbox owner to modify the event.",
	"delete_calendar_event": "Ask the mailbox owner to cancel the event.",
}

// IsAllowed decides whether a caller with the given configuration may
// invoke an operation. args may be nil; it is consulted only by the
// escalation rule table.
//
// Check order is fixed and meaningful:
//  1. Unmapped operations are allowed (compatibility posture for tools not
//     yet categorized; the taxonomy completeness test keeps this narrow).
//  2. Disabled categories deny regardless of role.
//  3. Admins are allowed everything else.
//  4. Delegates are confined to the delegate category set.
//  5. Escalation rules can reclassify a delegate's call by argument value.
func IsAllowed(user UserConfig, operation string, args map[string]any) PermissionResult {
	category, mapped := taxonomy.CategoryFor(operation)
	if !mapped {
		return allow()
	}

	if user.CategoryDisabled(category) {
		return deny("operation %q is not available: the %s category is disabled for this account", operation, category)
	}

	if user.Role == RoleAdmin {
		return allow()
	}

	if !delegateAllowedCategories[category] {
		result := deny("operation %q (category %s) is not permitted for delegates", operation, category)
		if hint, ok := delegateDenialHints[operation]; ok {
			result.Error += ". " + hint
		}
		return result
	}

	for _, rule := range taxonomy.EscalationRules {
		if rule.Operation != operation || !rule.Applies(args) {
			continue
		}
		if !delegateAllowedCategories[rule.ReclassifyAs] {
			result := deny("operation %q with %s set is treated as %s, which is not permitted for delegates", operation, rule.Argument, rule.ReclassifyAs)
			if hint, ok := delegateDenialHints[operation]; ok {
				result.Error += ". " + hint
			}
			return result
		}
	}

	return allow()
}

// VisibleOperations returns the set of mapped operation names the caller is
// permitted to invoke, for filtering operation listings. Hiding denied
// operations (rather than merely rejecting their invocation) avoids leaking
// which capabilities exist on this deployment. Unmapped operations are not
// in the taxonomy and therefore not filtered; the gateway leaves them
// visible.
func VisibleOperations(user UserConfig) map[string]bool {
	visible := make(map[string]bool)
	for _, operation := range taxonomy.Operations() {
		category, _ := taxonomy.CategoryFor(operation)
		if user.CategoryDisabled(category) {
			continue
		}
		if user.Role == RoleDelegate && !delegateAllowedCategories[category] {
			continue
		}
		visible[operation] = true
	}
	return visible
}
