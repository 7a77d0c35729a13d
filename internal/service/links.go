package service

import "fmt"

const discordLinkPrefix = "\u200b"

// PublicURL is the address an image is served under.
func PublicURL(host, storageKey string) string {
	return fmt.Sprintf("https://%s/%s", host, storageKey)
}

// DeletionURL keeps the exact shape existing deletion links were issued with.
func DeletionURL(baseURL, storageKey, deletionKey string) string {
	return fmt.Sprintf("%s/images/%s?k=%s", baseURL, storageKey, deletionKey)
}

// DisplayURL applies the account's link preference to a public URL.
func DisplayURL(rawURL string, discordLink bool) string {
	if discordLink {
		return discordLinkPrefix + rawURL
	}
	return rawURL
}
