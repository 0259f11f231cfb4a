// Package view renders outgoing email bodies. HTML parts are templ
// components; regenerate them with `templ generate` after editing a
// .templ file.
package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// PasswordResetText is the plain-text part of the password reset message.
func PasswordResetText(username, link string, ttl time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", username)
	b.WriteString("To reset your password, visit the following link:\n")
	b.WriteString(link + "\n\n")
	fmt.Fprintf(&b, "The link expires in %s.\n\n", FormatTTL(ttl))
	b.WriteString("If you did not make this request then simply ignore this email and no changes will be made.\n")
	return b.String()
}

// Render writes a component to a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// FormatTTL renders a duration as whole hours or minutes, e.g. "30 minutes".
func FormatTTL(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	m := int(d / time.Minute)
	if m < 1 {
		m = 1
	}
	return plural(m, "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
