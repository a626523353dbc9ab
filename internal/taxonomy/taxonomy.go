package taxonomy

// Category groups operations that share a risk and permission profile.
type Category string

const (
	CategoryEmailRead     Category = "EMAIL_READ"
	CategoryContacts      Category = "CONTACTS"
	CategoryCalendarRead  Category = "CALENDAR_READ"
	CategoryCalendarWrite Category = "CALENDAR_WRITE"
	CategoryInboxManage   Category = "INBOX_MANAGE"
	CategoryDraft         Category = "DRAFT"
	CategoryReply         Category = "REPLY"
	CategorySend          Category = "SEND"
	CategoryMeta          Category = "META"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryEmailRead,
	CategoryContacts,
	CategoryCalendarRead,
	CategoryCalendarWrite,
	CategoryInboxManage,
	CategoryDraft,
	CategoryReply,
	CategorySend,
	CategoryMeta,
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// toolCategories maps every exposed tool name to its permission category.
// The map must stay in sync with tool registration: an operation absent from
// this table is treated as allowed for every caller (a compatibility
// affordance for operations added before they are categorized, kept as the
// intended posture; see the completeness test).
var toolCategories = map[string]Category{
	// Mail reading
	"list_mailboxes":      CategoryEmailRead,
	"list_emails":         CategoryEmailRead,
	"get_email":           CategoryEmailRead,
	"get_email_thread":    CategoryEmailRead,
	"search_emails":       CategoryEmailRead,
	"get_attachment_list": CategoryEmailRead,

	// Contacts
	"list_contacts":   CategoryContacts,
	"get_contact":     CategoryContacts,
	"search_contacts": CategoryContacts,

	// Calendar reading
	"list_calendars":       CategoryCalendarRead,
	"list_calendar_events": CategoryCalendarRead,
	"get_calendar_event":   CategoryCalendarRead,

	// Calendar writing
	"create_calendar_event":     CategoryCalendarWrite,
	"update_calendar_event":     CategoryCalendarWrite,
	"delete_calendar_event":     CategoryCalendarWrite,
	"respond_to_calendar_event": CategoryCalendarWrite,

	// Inbox management
	"mark_email_read":   CategoryInboxManage,
	"mark_email_unread": CategoryInboxManage,
	"flag_email":        CategoryInboxManage,
	"archive_email":     CategoryInboxManage,
	"delete_email":      CategoryInboxManage,
	"move_email":        CategoryInboxManage,

	// Drafts
	"create_draft": CategoryDraft,
	"update_draft": CategoryDraft,
	"delete_draft": CategoryDraft,

	// Replying and sending
	"reply_to_email": CategoryReply,
	"send_email":     CategorySend,

	// Meta
	"get_session_info": CategoryMeta,
}

// CategoryFor returns the category for an operation name. The second return
// is false for operation names absent from the taxonomy; callers decide what
// that means (the policy engine allows them).
func CategoryFor(operation string) (Category, bool) {
	c, ok := toolCategories[operation]
	return c, ok
}

// Operations returns every operation name the taxonomy knows about.
func Operations() []string {
	ops := make([]string, 0, len(toolCategories))
	for name := range toolCategories {
		ops = append(ops, name)
	}
	return ops
}

// MarkDomain identifies which datamarking field rules apply to an
// operation's results.
type MarkDomain string

const (
	DomainMail    MarkDomain = "mail"
	DomainContact MarkDomain = "contact"
	DomainEvent   MarkDomain = "event"
)

// markDomains maps operations whose results carry externally authored text
// to the datamarking domain of that text. Operations absent here return
// results that contain no external free text (mailbox names, calendar names,
// session metadata) and pass through unmarked. The table is explicit rather
// than derived from tool-name prefixes so the mapping is auditable next to
// the category table.
var markDomains = map[string]MarkDomain{
	"list_emails":         DomainMail,
	"get_email":           DomainMail,
	"get_email_thread":    DomainMail,
	"search_emails":       DomainMail,
	"get_attachment_list": DomainMail,

	"list_contacts":   DomainContact,
	"get_contact":     DomainContact,
	"search_contacts": DomainContact,

	"list_calendar_events":      DomainEvent,
	"get_calendar_event":        DomainEvent,
	"respond_to_calendar_event": DomainEvent,
}

// MarkDomainFor returns the datamarking domain for an operation's results.
// The second return is false when the operation produces no externally
// authored text.
func MarkDomainFor(operation string) (MarkDomain, bool) {
	d, ok := markDomains[operation]
	return d, ok
}

// EscalationRule reclassifies a call into a different category when a
// specific argument value is present. Category-level allowance is necessary
// but not sufficient for operations listed here.
type EscalationRule struct {
	// Operation is the tool name the rule applies to.
	Operation string

	// Argument is the argument name inspected by the rule, used in denial
	// messages.
	Argument string

	// Applies reports whether the rule fires for the given arguments.
	Applies func(args map[string]any) bool

	// ReclassifyAs is the category the call is treated as when the rule
	// fires.
	ReclassifyAs Category
}

// EscalationRules lists every argument-driven reclassification. Replying
// with sendImmediately set submits the message for delivery, which carries
// the risk profile of SEND rather than REPLY even though both shapes share
// one tool name.
var EscalationRules = []EscalationRule{
	{
		Operation: "reply_to_email",
		Argument:  "sendImmediately",
		Applies: func(args map[string]any) bool {
			v, ok := args["sendImmediately"].(bool)
			return ok && v
		},
		ReclassifyAs: CategorySend,
	},
}
