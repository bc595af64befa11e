package db

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// FeedKey derives the stable row id for a feed registration. The same
// feed subscribed in two channels gets two distinct rows.
func FeedKey(link, atomLink, channelID string) string {
	sum := md5.Sum([]byte(link + "_" + atomLink + "_" + channelID))
	return hex.EncodeToString(sum[:])
}

// EntryKey derives the stable row id for a delivered entry, scoped to
// the channel it was delivered in.
func EntryKey(link, channelID string) string {
	sum := sha256.Sum256([]byte(link + "_" + channelID))
	return hex.EncodeToString(sum[:])
}
