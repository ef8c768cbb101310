// Package security provides input validation and credential masking for the
// command line and logs.
package security

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Steinwealth/UltimaBot/internal/errors"
)

// maxSymbolLen bounds user-supplied symbols.
const maxSymbolLen = 20

var (
	// Exchange pairs (BTCUSDT) and share classes (BRK.B).
	symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`)

	// Also matches the X-MBX-APIKEY header.
	secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|signature|password|token)([=:]\s*)["']?([^\s"'&]+)`)
)

// ParseSymbol normalises a user-supplied symbol to upper case and rejects
// anything that is not a plain ticker or pair.
func ParseSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case s == "":
		return "", errors.NewValidationError("symbol", symbol, "symbol cannot be empty")
	case len(s) > maxSymbolLen:
		return "", errors.NewValidationError("symbol", symbol, "symbol too long (max 20 characters)")
	case !symbolPattern.MatchString(s):
		return "", errors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	return s, nil
}

// MaskCredential masks a credential value, keeping at most four characters
// at each end.
func MaskCredential(value string) string {
	switch n := len(value); {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return value[:2] + strings.Repeat("*", n-2)
	default:
		return value[:4] + strings.Repeat("*", n-8) + value[n-4:]
	}
}

// MaskSecrets masks key=value style credentials and API key headers in
// free text such as broker error messages.
func MaskSecrets(input string) string {
	return secretPattern.ReplaceAllStringFunc(input, func(m string) string {
		sub := secretPattern.FindStringSubmatch(m)
		return sub[1] + sub[2] + MaskCredential(sub[3])
	})
}

// MaskURL masks the password and the path of a URL, which webhook
// providers use to carry tokens. Unparseable input is masked whole.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return MaskCredential(raw)
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	if u.Path != "" && u.Path != "/" {
		u.Path = "/..."
	}
	u.RawQuery = ""
	return u.String()
}
