// Package sanitize redacts credentials from launch commands before they are
// logged or written to the dispatch ledger.
package sanitize

import "regexp"

const redacted = "[REDACTED]"

type SecretPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// SecretPatterns are applied in order to every argument.
var SecretPatterns = []SecretPattern{
	{
		// userinfo passwords in URLs
		Pattern:     regexp.MustCompile(`(://[^:/\s@]+:)[^@\s/]+@`),
		Replacement: `${1}` + redacted + `@`,
	},
	{
		// callback addresses carry the executor token as a query parameter
		Pattern:     regexp.MustCompile(`(?i)([?&](?:token|access_token|signature|x-amz-signature)=)[^&\s'"]+`),
		Replacement: `${1}` + redacted,
	},
	{
		Pattern:     regexp.MustCompile(`(?i)(Authorization:\s*(?:Bearer|token)\s+)\S+`),
		Replacement: `${1}` + redacted,
	},
	{
		// spark --conf and env assignments: spark.hadoop.fs.s3a.secret.key=..., AWS_SECRET_ACCESS_KEY=...
		Pattern:     regexp.MustCompile(`(?i)((?:secret|password|access[._-]?key|token)[a-z0-9._-]*\s*[=:]\s*['"]?)([^\s'"&]{6,})`),
		Replacement: `${1}` + redacted,
	},
	{
		Pattern:     regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`),
		Replacement: redacted,
	},
	{
		// JWTs
		Pattern:     regexp.MustCompile(`ey[J-Za-z0-9-_=]+\.[J-Za-z0-9-_=]+\.[J-Za-z0-9-_.+/=]*`),
		Replacement: redacted,
	},
}

func SanitizeArgs(args []string) []string {
	sanitized := make([]string, len(args))
	for i, arg := range args {
		sanitized[i] = Command(arg)
	}
	return sanitized
}

// Command redacts a whole shell command line.
func Command(cmd string) string {
	for _, p := range SecretPatterns {
		cmd = p.Pattern.ReplaceAllString(cmd, p.Replacement)
	}
	return cmd
}
