package security

import "crypto/subtle"

// SecretsEqual compares bearer secrets in constant time. Empty values never match.
func SecretsEqual(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
