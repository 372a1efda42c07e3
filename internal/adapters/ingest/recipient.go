package ingest

import (
	"errors"
	"strings"
)

// AlertMailbox is the local part that routes alert mail to the intel feature
const AlertMailbox = "intel"

// ErrUnroutableRecipient is returned for addresses that do not name an organization
var ErrUnroutableRecipient = errors.New("recipient is not an alert mailbox")

// ParseRecipient extracts the organization from intel+<org>@<domain>. The domain check
// is skipped when domain is empty.
func ParseRecipient(address, domain string) (string, error) {
	addr := extractEmailAddress(address)
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "", ErrUnroutableRecipient
	}
	local, host := addr[:at], addr[at+1:]
	if domain != "" && !strings.EqualFold(host, domain) {
		return "", ErrUnroutableRecipient
	}

	mailbox, org, found := strings.Cut(local, "+")
	if !found || !strings.EqualFold(mailbox, AlertMailbox) {
		return "", ErrUnroutableRecipient
	}
	org = strings.TrimSpace(org)
	if org == "" || strings.ContainsAny(org, "/\\") {
		return "", ErrUnroutableRecipient
	}
	return org, nil
}
