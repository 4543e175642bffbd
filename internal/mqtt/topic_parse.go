package mqtt

import (
	"fmt"
	"strings"
)

// expected: {prefix}/session/{sessionId}/emotion
func ParseSessionID(topic, prefix string) (string, error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) != len(prefixParts)+3 {
		return "", fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return "", fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	if parts[len(prefixParts)] != "session" || parts[len(parts)-1] != "emotion" {
		return "", fmt.Errorf("invalid topic pattern: %s", topic)
	}
	if parts[len(prefixParts)+1] == "" {
		return "", fmt.Errorf("empty session id: %s", topic)
	}
	return parts[len(prefixParts)+1], nil
}
