// Package cookies converts between cookie rows and the flat Netscape
// cookies.txt format that spotdl (via yt-dlp) consumes for authenticated
// downloads.
package cookies

import (
	"fmt"
	"strconv"
	"strings"
)

// Header is the fixed two-line comment every generated file starts with.
const Header = "# Netscape HTTP Cookie File\n# This is a generated file! Do not edit.\n"

// Cookie is one row from an external cookie store. It is read-only; its
// lifetime is the conversion call.
type Cookie struct {
	Domain string
	Name   string
	Value  string
	Path   string
	Secure bool
	// Expiry is epoch seconds.
	Expiry int64
}

// netscapeBool renders the upper-case TRUE/FALSE tokens the format expects.
func netscapeBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// Convert renders cookie rows as Netscape cookies.txt content. The column
// layout per row is domain, include-subdomains flag, path, secure flag,
// expiry, name, value, tab separated. Domains without a leading dot get one
// prepended (domain-scope convention); the subdomain flag is derived from
// that, not stored. Input order is preserved.
func Convert(rows []Cookie) string {
	var b strings.Builder
	b.WriteString(Header)

	for _, c := range rows {
		domain := c.Domain
		if domain != "" && !strings.HasPrefix(domain, ".") {
			domain = "." + domain
		}
		b.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain,
			netscapeBool(strings.HasPrefix(domain, ".")),
			c.Path,
			netscapeBool(c.Secure),
			c.Expiry,
			c.Name,
			c.Value,
		))
	}

	return b.String()
}

// Parse reads cookies.txt content back into rows, skipping comments, blank
// lines, and rows that don't fit the seven-column layout. Used when a user
// uploads an exported cookie file.
func Parse(content string) []Cookie {
	// Normalize line endings (Windows CRLF, old Mac CR).
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var rows []Cookie
	for _, line := range strings.Split(normalized, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		parts := strings.Split(trimmed, "\t")
		if len(parts) < 7 {
			continue
		}
		expiry, err := strconv.ParseInt(parts[4], 10, 64)
		if err != nil {
			continue
		}

		rows = append(rows, Cookie{
			Domain: parts[0],
			Path:   parts[2],
			Secure: strings.EqualFold(parts[3], "TRUE"),
			Expiry: expiry,
			Name:   parts[5],
			Value:  parts[6],
		})
	}
	return rows
}
