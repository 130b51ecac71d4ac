package recommend

import "strings"

// DefaultGenre is searched for emotions outside the table.
const DefaultGenre = "pop"

var genreByEmotion = map[string]string{
	"happy":    "pop",
	"sad":      "sad",
	"angry":    "rock",
	"fear":     "ambient",
	"neutral":  "classical",
	"surprise": "electronic",
	"disgust":  "metal",
}

// ResolveGenre returns the catalog genre keyword for an emotion label.
// Lookup is case-insensitive and never fails.
func ResolveGenre(emotion string) string {
	if g, ok := genreByEmotion[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return g
	}
	return DefaultGenre
}
