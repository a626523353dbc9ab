package policy

import (
	"strings"
	"testing"

	"github.com/petrel-mail/petrel/internal/taxonomy"
)

func adminConfig() UserConfig {
	return UserConfig{Role: RoleAdmin, DisabledCategories: map[taxonomy.Category]bool{}}
}

func delegateConfig() UserConfig {
	return UserConfig{Role: RoleDelegate, DisabledCategories: map[taxonomy.Category]bool{}}
}

func TestAdminAllowedEverything(t *testing.T) {
	user := adminConfig()
	for _, op := range taxonomy.Operations() {
		if result := IsAllowed(user, op, nil); !result.Allowed {
			t.Errorf("admin denied %q: %s", op, result.Error)
		}
	}
}

func TestDisabledCategoryBeatsAdminRole(t *testing.T) {
	user := UserConfig{
		Role:               RoleAdmin,
		DisabledCategories: map[taxonomy.Category]bool{taxonomy.CategoryEmailRead: true},
	}

	result := IsAllowed(user, "list_mailboxes", nil)
	if result.Allowed {
		t.Fatal("admin with EMAIL_READ disabled should be denied list_mailboxes")
	}
	if !strings.Contains(result.Error, "EMAIL_READ") {
		t.Errorf("denial should name the category, got: %s", result.Error)
	}
	if !strings.Contains(result.Error, "list_mailboxes") {
		t.Errorf("denial should name the operation, got: %s", result.Error)
	}
}

func TestDelegateDeniedSend(t *testing.T) {
	result := IsAllowed(delegateConfig(), "send_email", nil)
	if result.Allowed {
		t.Fatal("delegate should be denied send_email")
	}
	if !strings.Contains(result.Error, "create_draft") {
		t.Errorf("denial should steer toward create_draft, got: %s", result.Error)
	}
}

func TestDelegateDeniedCalendarWrite(t *testing.T) {
	for _, op := range []string{"create_calendar_event", "update_calendar_event", "delete_calendar_event", "respond_to_calendar_event"} {
		if result := IsAllowed(delegateConfig(), op, nil); result.Allowed {
			t.Errorf("delegate should be denied %q", op)
		}
	}
}

func TestDelegateReplyEscalation(t *testing.T) {
	user := delegateConfig()

	tests := []struct {
		name    string
		args    map[string]any
		allowed bool
	}{
		{"immediate send", map[string]any{"sendImmediately": true}, false},
		{"explicit draft", map[string]any{"sendImmediately": false}, true},
		{"omitted", map[string]any{"emailId": "M123"}, true},
		{"nil args", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsAllowed(user, "reply_to_email", tt.args)
			if result.Allowed != tt.allowed {
				t.Fatalf("reply_to_email allowed = %v, want %v (%s)", result.Allowed, tt.allowed, result.Error)
			}
			if !tt.allowed && !strings.Contains(result.Error, "sendImmediately") {
				t.Errorf("denial should name the triggering argument, got: %s", result.Error)
			}
		})
	}
}

func TestAdminReplyWithImmediateSendAllowed(t *testing.T) {
	result := IsAllowed(adminConfig(), "reply_to_email", map[string]any{"sendImmediately": true})
	if !result.Allowed {
		t.Fatalf("admin should be allowed reply_to_email with sendImmediately: %s", result.Error)
	}
}

func TestDelegateAllowedReadAndManage(t *testing.T) {
	user := delegateConfig()
	for _, op := range []string{"list_emails", "get_email", "mark_email_read", "archive_email", "create_draft", "list_contacts", "list_calendar_events", "get_session_info"} {
		if result := IsAllowed(user, op, nil); !result.Allowed {
			t.Errorf("delegate denied %q: %s", op, result.Error)
		}
	}
}

func TestUnmappedOperationAllowed(t *testing.T) {
	for _, user := range []UserConfig{adminConfig(), delegateConfig()} {
		if result := IsAllowed(user, "experimental_new_tool", nil); !result.Allowed {
			t.Errorf("unmapped operation should be allowed for role %s", user.Role)
		}
	}
}

func TestVisibleOperationsDelegate(t *testing.T) {
	visible := VisibleOperations(delegateConfig())

	for op := range visible {
		category, _ := taxonomy.CategoryFor(op)
		if category == taxonomy.CategorySend || category == taxonomy.CategoryCalendarWrite {
			t.Errorf("delegate should never see %q (category %s)", op, category)
		}
	}

	if !visible["reply_to_email"] {
		t.Error("delegate should see reply_to_email")
	}
	if visible["send_email"] {
		t.Error("delegate should not see send_email")
	}
}

func TestVisibleOperationsDisabledCategory(t *testing.T) {
	user := UserConfig{
		Role:               RoleAdmin,
		DisabledCategories: map[taxonomy.Category]bool{taxonomy.CategoryContacts: true},
	}
	visible := VisibleOperations(user)

	if visible["list_contacts"] || visible["get_contact"] || visible["search_contacts"] {
		t.Error("contact operations should be hidden when CONTACTS is disabled")
	}
	if !visible["send_email"] {
		t.Error("admin should still see send_email")
	}
}
