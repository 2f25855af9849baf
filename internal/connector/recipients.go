package connector

import "strings"

// ExtractNumber returns the number of a "Name <number>" recipient, or the
// trimmed input when it has no angle brackets.
func ExtractNumber(recipient string) string {
	recipient = strings.TrimSpace(recipient)
	open := strings.LastIndex(recipient, "<")
	if open >= 0 {
		if end := strings.Index(recipient[open:], ">"); end > 0 {
			return strings.TrimSpace(recipient[open+1 : open+end])
		}
	}
	return recipient
}

var numberNoise = strings.NewReplacer(" ", "", "-", "", "/", "", "(", "", ")", "", ".", "")

// NationalToInternational rewrites a national number with prefix. Numbers
// already starting with + are kept and a leading 00 becomes +.
func NationalToInternational(prefix, number string) string {
	number = numberNoise.Replace(number)
	switch {
	case number == "":
		return ""
	case strings.HasPrefix(number, "+"):
		return number
	case strings.HasPrefix(number, "00"):
		return "+" + number[2:]
	case strings.HasPrefix(number, "0"):
		return prefix + number[1:]
	default:
		return prefix + number
	}
}

// NormalizeRecipients extracts and internationalizes every recipient. Entries
// of at most one character are dropped.
func NormalizeRecipients(recipients []string, prefix string) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		n := ExtractNumber(r)
		if len(n) <= 1 {
			continue
		}
		out = append(out, NationalToInternational(prefix, n))
	}
	return out
}
