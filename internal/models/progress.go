package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityType identifies one mini-game kind within a unit.
type ActivityType string

const (
	ActivitySightWordGlow   ActivityType = "sight-word-glow"
	ActivitySnapshotStars   ActivityType = "snapshot-stars"
	ActivitySightWordPop    ActivityType = "sight-word-pop"
	ActivityPhonicsFusion   ActivityType = "phonics-fusion"
	ActivitySegmentation    ActivityType = "segmentation"
	ActivityWordSlider      ActivityType = "word-slider"
	ActivityWordHunter      ActivityType = "word-hunter"
	ActivityWordSpy         ActivityType = "word-spy"
	ActivityPhonicsBuilder  ActivityType = "phonics-builder"
	ActivityWordGrid        ActivityType = "word-grid"
	ActivitySentenceStream  ActivityType = "sentence-stream"
	ActivityWordByWord      ActivityType = "word-by-word"
	ActivitySentenceReader  ActivityType = "sentence-reader"
	ActivitySentenceBuilder ActivityType = "sentence-builder"
	ActivityStoryRecorder   ActivityType = "story-recorder"
	ActivityStoryReader     ActivityType = "story-reader"
)

// ActivityRoster is the default set of activities every unit offers, in menu order.
var ActivityRoster = []ActivityType{
	ActivitySightWordGlow,
	ActivitySnapshotStars,
	ActivitySightWordPop,
	ActivityPhonicsFusion,
	ActivitySegmentation,
	ActivityWordSlider,
	ActivityWordHunter,
	ActivityWordSpy,
	ActivityPhonicsBuilder,
	ActivityWordGrid,
	ActivitySentenceStream,
	ActivityWordByWord,
	ActivitySentenceReader,
	ActivitySentenceBuilder,
	ActivityStoryRecorder,
	ActivityStoryReader,
}

// legacyActivityNames maps game_type spellings found in older progress rows.
var legacyActivityNames = map[string]ActivityType{
	"sight-word": ActivitySightWordPop,
	"fusion":     ActivityPhonicsFusion,
	"grid":       ActivityWordGrid,
	"story":      ActivityStoryReader,
}

// ParseActivityType normalizes s (case, underscores, legacy names) into a
// known activity type.
func ParseActivityType(s string) (ActivityType, bool) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if a, ok := legacyActivityNames[name]; ok {
		return a, true
	}
	for _, a := range ActivityRoster {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// ContentKind names the unit content set an activity draws its items from.
type ContentKind string

const (
	ContentSightWords ContentKind = "sight_words"
	ContentDecodable  ContentKind = "decodable"
	ContentSentences  ContentKind = "sentences"
	ContentStories    ContentKind = "stories"
)

// ContentKind returns the content set scored by this activity.
func (a ActivityType) ContentKind() ContentKind {
	switch a {
	case ActivitySightWordGlow, ActivitySnapshotStars, ActivitySightWordPop:
		return ContentSightWords
	case ActivitySentenceStream, ActivityWordByWord, ActivitySentenceReader, ActivitySentenceBuilder:
		return ContentSentences
	case ActivityStoryRecorder, ActivityStoryReader:
		return ContentStories
	default:
		return ContentDecodable
	}
}

// Outcome is the result of one scored interaction.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

func ParseOutcome(s string) (Outcome, bool) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeCorrect:
		return OutcomeCorrect, true
	case OutcomeIncorrect:
		return OutcomeIncorrect, true
	}
	return "", false
}

// NormalizeLearnerID trims id and rewrites UUIDs in their canonical
// lower-case form so every spelling of one learner maps to the same rows.
// Other identifiers are kept as given.
func NormalizeLearnerID(id string) string {
	id = strings.TrimSpace(id)
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

// ProgressKey is the unique identity of an ActivityProgress row.
type ProgressKey struct {
	LearnerID string       `json:"learner_id"`
	UnitID    string       `json:"unit_id"`
	Activity  ActivityType `json:"activity_type"`
}

func (k ProgressKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.LearnerID, k.UnitID, k.Activity)
}

// ActivityProgress is the persisted mastery percent for one key.
type ActivityProgress struct {
	LearnerID string       `json:"learner_id"`
	UnitID    string       `json:"unit_id"`
	Activity  ActivityType `json:"activity_type"`
	Percent   int          `json:"percent"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (p ActivityProgress) Key() ProgressKey {
	return ProgressKey{LearnerID: p.LearnerID, UnitID: p.UnitID, Activity: p.Activity}
}

// SyncStatus reports whether the latest percent for a key reached storage.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusUnsynced SyncStatus = "unsynced"
)

// RecordResult is returned to callers right after an outcome is scored.
type RecordResult struct {
	Percent    int        `json:"percent"`
	Completed  bool       `json:"completed"`
	SyncStatus SyncStatus `json:"sync_status"`
}

// ResumePoint tells an activity where to pick up on reload.
type ResumePoint struct {
	Percent     int  `json:"percent"`
	ResumeIndex int  `json:"resume_index"`
	ItemCount   int  `json:"item_count"`
	Completed   bool `json:"completed"`
}

// UnsyncedWrite is a write that exhausted its retries.
type UnsyncedWrite struct {
	Key       ProgressKey `json:"key"`
	Percent   int         `json:"percent"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error"`
	FailedAt  time.Time   `json:"failed_at"`
}
