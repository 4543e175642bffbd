package mqtt

import "fmt"

func TopicSessionEmotion(prefix, sessionID string) string {
	return fmt.Sprintf("%s/session/%s/emotion", prefix, sessionID)
}

func TopicEmotions(prefix string) string {
	return fmt.Sprintf("%s/session/+/emotion", prefix)
}
