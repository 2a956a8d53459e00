// internal/normalize/identity.go
package normalize

import (
	"fmt"
	"strings"
)

// Identity names the family of DOM serializers a document came from.
type Identity int

const (
	// Default serializers already emit canonical order.
	Default Identity = iota
	// LegacyIE is the Internet Explorer serializer family.
	LegacyIE
	// LegacyEdge is the pre-Chromium Edge serializer family.
	LegacyEdge
)

func (i Identity) String() string {
	switch i {
	case LegacyIE:
		return "legacy-ie"
	case LegacyEdge:
		return "legacy-edge"
	default:
		return "default"
	}
}

// ParseIdentity accepts the names produced by String.
func ParseIdentity(s string) (Identity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, nil
	case "legacy-ie", "ie":
		return LegacyIE, nil
	case "legacy-edge", "edge":
		return LegacyEdge, nil
	}
	return Default, fmt.Errorf("unknown serializer identity %q", s)
}

// IdentityForBrowser maps a WebDriver browser name to its serializer family.
func IdentityForBrowser(name string) Identity {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INTERNETEXPLORER", "IE":
		return LegacyIE
	case "EDGE":
		return LegacyEdge
	default:
		return Default
	}
}
