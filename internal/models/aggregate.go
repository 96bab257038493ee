package models

type UnitProgress struct {
	UnitID             string               `json:"unit_id"`
	UnitNumber         int                  `json:"unit_number"`
	Title              string               `json:"title"`
	Percent            int                  `json:"percent"`
	ExpectedActivities int                  `json:"expected_activities"`
	Activities         map[ActivityType]int `json:"activities"`
}

type LevelProgress struct {
	LevelID string         `json:"level_id"`
	Title   string         `json:"title"`
	Percent int            `json:"percent"`
	Units   []UnitProgress `json:"units"`
}

// LearnerStats summarizes a learner across the whole curriculum.
type LearnerStats struct {
	LearnerID           string `json:"learner_id"`
	ActivitiesStarted   int    `json:"activities_started"`
	ActivitiesCompleted int    `json:"activities_completed"`
	UnitsCompleted      int    `json:"units_completed"`
	TotalPoints         int    `json:"total_points"`
	CurrentLevelID      string `json:"current_level_id"`
	CurrentUnitID       string `json:"current_unit_id"`
}
