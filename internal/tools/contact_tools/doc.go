// Package contact_tools provides MCP tools for the address book side of a
// JMAP account: list_contacts, get_contact, and search_contacts. Contact
// names and notes are externally authored and datamarked on the way out.
package contact_tools
