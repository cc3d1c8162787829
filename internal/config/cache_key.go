package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptStartKey returns the cache key for a participant's attempt start time.
func (r *CacheKeyStruct) AttemptStartKey(assessmentID string, participantID int) string {
	return fmt.Sprintf("participant:%d:assessment:%s:attempt_start", participantID, assessmentID)
}

// AttemptAnswersKey returns the cache key for a participant's buffered answers.
func (r *CacheKeyStruct) AttemptAnswersKey(assessmentID string, participantID int) string {
	return fmt.Sprintf("participant:%d:assessment:%s:answers", participantID, assessmentID)
}

// PaperKey returns the cache key for an assessment's participant-facing paper.
func (r *CacheKeyStruct) PaperKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:paper", assessmentID)
}

// DurationKey returns the cache key for an assessment's duration in minutes.
func (r *CacheKeyStruct) DurationKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:duration", assessmentID)
}

// ScheduledStartKey returns the cache key for an assessment's scheduled start.
func (r *CacheKeyStruct) ScheduledStartKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:scheduled_start", assessmentID)
}

// PresenceKey returns the cache key marking a participant's live
// WebSocket connection to an attempt.
func (r *CacheKeyStruct) PresenceKey(assessmentID string, participantID int) string {
	return fmt.Sprintf("participant:%d:assessment:%s:ws_presence", participantID, assessmentID)
}

// EventsChannel returns the Redis Pub/Sub channel carrying engine events
// for one assessment (attempt sealed, graded, results published).
func (r *CacheKeyStruct) EventsChannel(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:events", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
