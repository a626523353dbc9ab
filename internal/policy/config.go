package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/petrel-mail/petrel/internal/taxonomy"
)

// Role is a caller's trust level. Roles are attached to identities by
// configuration, never asserted by the caller.
type Role string

const (
	// RoleAdmin is the mailbox owner; allowed everything outside disabled
	// categories.
	RoleAdmin Role = "admin"

	// RoleDelegate is a restricted caller; allowed read, organize, and
	// draft operations but nothing that sends mail or mutates calendars.
	RoleDelegate Role = "delegate"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDelegate
}

// UserConfig is the resolved permission configuration for one caller.
type UserConfig struct {
	Role               Role                        `json:"role"`
	DisabledCategories map[taxonomy.Category]bool `json:"disabledCategories"`
}

// CategoryDisabled reports whether the category is disabled for this user.
func (u UserConfig) CategoryDisabled(c taxonomy.Category) bool {
	return u.DisabledCategories[c]
}

// PermissionsConfig is the stored permission configuration for the whole
// deployment. It is owned by an external admin surface; this package only
// reads it.
type PermissionsConfig struct {
	// Users maps caller email addresses (matched case-insensitively) to
	// their configuration.
	Users map[string]UserConfig `json:"users"`

	// DefaultRole applies to callers absent from Users.
	DefaultRole Role `json:"defaultRole"`

	// DefaultDisabledCategories applies to callers absent from Users.
	DefaultDisabledCategories []taxonomy.Category `json:"defaultDisabledCategories"`
}

// DefaultPermissionsConfig is the configuration used when the store holds
// none: every authenticated caller is the mailbox owner. Permission
// filtering is opt-in; OAuth still gates who can authenticate at all.
func DefaultPermissionsConfig() *PermissionsConfig {
	return &PermissionsConfig{
		Users:       map[string]UserConfig{},
		DefaultRole: RoleAdmin,
	}
}

// ParsePermissionsConfig decodes the stored JSON form, validating roles and
// category names so a typo in the stored config fails loudly at load time
// rather than silently granting or withholding access.
func ParsePermissionsConfig(raw []byte) (*PermissionsConfig, error) {
	var stored struct {
		Users map[string]struct {
			Role               Role     `json:"role"`
			DisabledCategories []string `json:"disabledCategories"`
		} `json:"users"`
		DefaultRole               Role     `json:"defaultRole"`
		DefaultDisabledCategories []string `json:"defaultDisabledCategories"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse permissions config: %w", err)
	}

	config := &PermissionsConfig{
		Users:       make(map[string]UserConfig, len(stored.Users)),
		DefaultRole: stored.DefaultRole,
	}
	if config.DefaultRole == "" {
		config.DefaultRole = RoleAdmin
	}
	if !config.DefaultRole.Valid() {
		return nil, fmt.Errorf("unknown default role %q", config.DefaultRole)
	}

	for _, name := range stored.DefaultDisabledCategories {
		cat := taxonomy.Category(name)
		if !cat.Valid() {
			return nil, fmt.Errorf("unknown category %q in defaultDisabledCategories", name)
		}
		config.DefaultDisabledCategories = append(config.DefaultDisabledCategories, cat)
	}

	for email, user := range stored.Users {
		role := user.Role
		if role == "" {
			role = config.DefaultRole
		}
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q for user %s", role, email)
		}

		disabled := make(map[taxonomy.Category]bool, len(user.DisabledCategories))
		for _, name := range user.DisabledCategories {
			cat := taxonomy.Category(name)
			if !cat.Valid() {
				return nil, fmt.Errorf("unknown category %q for user %s", name, email)
			}
			disabled[cat] = true
		}

		config.Users[email] = UserConfig{Role: role, DisabledCategories: disabled}
	}

	return config, nil
}

// ResolveUserConfig returns the configuration for a caller identity,
// matching configured users case-insensitively and falling back to the
// deployment defaults for unknown callers. There is no error path: a
// caller the config does not mention gets the defaults, never a failure.
func ResolveUserConfig(config *PermissionsConfig, identity string) UserConfig {
	if config == nil {
		config = DefaultPermissionsConfig()
	}

	for email, user := range config.Users {
		if strings.EqualFold(email, identity) {
			return user
		}
	}

	disabled := make(map[taxonomy.Category]bool, len(config.DefaultDisabledCategories))
	for _, cat := range config.DefaultDisabledCategories {
		disabled[cat] = true
	}
	return UserConfig{Role: config.DefaultRole, DisabledCategories: disabled}
}
