package cache

import "strings"

const (
	GlobalKeyPrefix = "quiztube"

	ServiceTranscription = "transcription"
	ServiceGeneration    = "generation"
	ServiceQuiz          = "quiz"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// TranscriptKey is the cache key of a transcript for one video and language.
func TranscriptKey(videoID, language string) string {
	if language == "" {
		language = "auto"
	}
	return GenerateCacheKey(ServiceTranscription, "transcript", videoID, language)
}

// JobKey is the hash key holding a generation job's status.
func JobKey(jobID string) string {
	return GenerateCacheKey(ServiceGeneration, "job", jobID)
}

// QuizViewKey is the cache key of a quiz's player view.
func QuizViewKey(quizID string) string {
	return GenerateCacheKey(ServiceQuiz, "view", quizID)
}
