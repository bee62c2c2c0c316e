package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// EmailID derives the cache identity of a message from its stable wire
// attributes. The same physical message always hashes to the same id, so
// re-ingestion updates rather than duplicates.
func EmailID(messageID, subject string, date time.Time) string {
	seed := fmt.Sprintf("%s|%s|%d", CleanMessageID(messageID), subject, date.UTC().Unix())
	hash := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("email_%x", hash[:12])
}

// ThreadID derives a thread identity from a normalized subject, so
// same-conversation messages group even when reply headers are missing
func ThreadID(cleanSubject string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(cleanSubject)))
	return fmt.Sprintf("thread_%x", hash[:12])
}

// GenerateRequestID returns a short random identifier for tracking one
// classification or notification request end to end
func GenerateRequestID() string {
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789"
	id, err := gonanoid.Generate(alphabet, 12)
	if err != nil {
		panic(err)
	}
	return id
}
