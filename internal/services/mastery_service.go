package services

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vytor/phonicsmastery/internal/curriculum"
	"github.com/vytor/phonicsmastery/internal/errors"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/mastery"
	"github.com/vytor/phonicsmastery/internal/models"
	"github.com/vytor/phonicsmastery/internal/repository"
)

// ProgressWriter accepts progress for background persistence and exposes
// values that have not reached storage yet. *syncqueue.Queue satisfies it.
type ProgressWriter interface {
	Enqueue(p models.ActivityProgress) models.SyncStatus
	Latest(key models.ProgressKey) (models.ActivityProgress, bool)
	LatestFor(learnerID string) []models.ActivityProgress
	Unsynced(learnerID string) []models.UnsyncedWrite
	Drain(ctx context.Context) error
}

// MasteryService scores activity outcomes and reports progress.
type MasteryService interface {
	RecordOutcome(ctx context.Context, learnerID, unitID string, activity models.ActivityType, outcome models.Outcome) (*models.RecordResult, error)
	CompleteActivity(ctx context.Context, learnerID, unitID string, activity models.ActivityType) (*models.RecordResult, error)
	ResetActivity(ctx context.Context, learnerID, unitID string, activity models.ActivityType) (*models.RecordResult, error)
	Resume(ctx context.Context, learnerID, unitID string, activity models.ActivityType) (*models.ResumePoint, error)
	UnitProgress(ctx context.Context, learnerID, unitID string) (*models.UnitProgress, error)
	LevelProgress(ctx context.Context, learnerID, levelID string) (*models.LevelProgress, error)
	Stats(ctx context.Context, learnerID string) (*models.LearnerStats, error)
	Unsynced(ctx context.Context, learnerID string) []models.UnsyncedWrite
	Flush(ctx context.Context, learnerID string) error
}

type MasteryOptions struct {
	// ExpectedActivityCount divides unit totals; 0 uses the roster size.
	ExpectedActivityCount int
	Now                   func() time.Time
}

type masteryService struct {
	repo     repository.ProgressRepository
	writer   ProgressWriter
	content  *curriculum.Curriculum
	locks    *keyLock
	expected int
	now      func() time.Time
}

// NewMasteryService creates a new MasteryService
func NewMasteryService(repo repository.ProgressRepository, writer ProgressWriter, content *curriculum.Curriculum, opts MasteryOptions) MasteryService {
	expected := opts.ExpectedActivityCount
	if expected <= 0 {
		expected = len(content.Roster())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &masteryService{
		repo:     repo,
		writer:   writer,
		content:  content,
		locks:    newKeyLock(),
		expected: expected,
		now:      now,
	}
}

func (s *masteryService) RecordOutcome(ctx context.Context, learnerID, unitID string, activity models.ActivityType, outcome models.Outcome) (*models.RecordResult, error) {
	if _, ok := models.ParseOutcome(string(outcome)); !ok {
		return nil, errors.NewValidationError("outcome", "must be correct or incorrect")
	}
	return s.update(ctx, learnerID, unitID, activity, true, func(sess *mastery.Session) {
		sess.Apply(outcome)
	})
}

// CompleteActivity records a won round, which always reaches full mastery.
func (s *masteryService) CompleteActivity(ctx context.Context, learnerID, unitID string, activity models.ActivityType) (*models.RecordResult, error) {
	return s.update(ctx, learnerID, unitID, activity, true, func(sess *mastery.Session) {
		sess.Complete()
	})
}

// ResetActivity is the explicit practice-mode reset back to zero.
func (s *masteryService) ResetActivity(ctx context.Context, learnerID, unitID string, activity models.ActivityType) (*models.RecordResult, error) {
	return s.update(ctx, learnerID, unitID, activity, false, func(sess *mastery.Session) {
		sess.Reset()
	})
}

func (s *masteryService) update(ctx context.Context, learnerID, unitID string, activity models.ActivityType, needsContent bool, step func(*mastery.Session)) (*models.RecordResult, error) {
	key := models.ProgressKey{LearnerID: learnerID, UnitID: unitID, Activity: activity}
	log := logger.FromContext(ctx).WithField("key", key.String())

	itemCount, err := s.itemCount(unitID, activity)
	if err != nil {
		if !needsContent && errors.Is(err, errors.ErrEmptyContent) {
			itemCount = 1
		} else {
			return nil, err
		}
	}

	unlock := s.locks.lock(key)
	defer unlock()

	current, err := s.current(ctx, key)
	if err != nil {
		log.Error("failed to load progress: %v", err)
		return nil, errors.NewInternalError(err)
	}

	sess, err := mastery.NewSession(current.Percent, itemCount)
	if err != nil {
		return nil, errors.NewConfigurationError(unitID, string(activity))
	}
	step(sess)

	status := s.writer.Enqueue(models.ActivityProgress{
		LearnerID: learnerID,
		UnitID:    unitID,
		Activity:  activity,
		Percent:   sess.Percent(),
		UpdatedAt: s.stamp(current.UpdatedAt),
	})
	if len(s.writer.Unsynced(learnerID)) > 0 {
		status = models.SyncStatusUnsynced
	}
	log.Debug("percent %d -> %d (%s)", current.Percent, sess.Percent(), sess.State())

	return &models.RecordResult{
		Percent:    sess.Percent(),
		Completed:  sess.Completed(),
		SyncStatus: status,
	}, nil
}

func (s *masteryService) Resume(ctx context.Context, learnerID, unitID string, activity models.ActivityType) (*models.ResumePoint, error) {
	key := models.ProgressKey{LearnerID: learnerID, UnitID: unitID, Activity: activity}
	log := logger.FromContext(ctx)

	itemCount, err := s.itemCount(unitID, activity)
	if err != nil {
		return nil, err
	}
	current, err := s.current(ctx, key)
	if err != nil {
		log.Error("failed to load progress for %s: %v", key, err)
		return nil, errors.NewInternalError(err)
	}
	percent := current.Percent

	return &models.ResumePoint{
		Percent:     percent,
		ResumeIndex: mastery.ResumeIndex(percent, itemCount),
		ItemCount:   itemCount,
		Completed:   percent >= mastery.MaxPercent,
	}, nil
}

func (s *masteryService) UnitProgress(ctx context.Context, learnerID, unitID string) (*models.UnitProgress, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting unit progress: learner_id=%s, unit_id=%s", learnerID, unitID)

	unit, err := s.content.Unit(unitID)
	if err != nil {
		return nil, errors.NewNotFoundError("unit", unitID)
	}
	rows, err := s.repo.ListByUnit(ctx, learnerID, unitID)
	if err != nil {
		log.Error("failed to list unit progress: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return s.unitProgress(unit, s.overlay(learnerID, rows)), nil
}

// LevelProgress aggregates every unit of the level concurrently.
func (s *masteryService) LevelProgress(ctx context.Context, learnerID, levelID string) (*models.LevelProgress, error) {
	level, err := s.content.Level(levelID)
	if err != nil {
		return nil, errors.NewNotFoundError("level", levelID)
	}

	units := make([]models.UnitProgress, len(level.Units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range level.Units {
		g.Go(func() error {
			up, err := s.UnitProgress(gctx, learnerID, level.Units[i].ID)
			if err != nil {
				return err
			}
			units[i] = *up
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	percents := make([]int, len(units))
	for i, u := range units {
		percents[i] = u.Percent
	}
	return &models.LevelProgress{
		LevelID: level.ID,
		Title:   level.Title,
		Percent: mastery.AggregateLevel(percents),
		Units:   units,
	}, nil
}

func (s *masteryService) Stats(ctx context.Context, learnerID string) (*models.LearnerStats, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting learner stats: learner_id=%s", learnerID)

	rows, err := s.repo.ListByLearner(ctx, learnerID)
	if err != nil {
		log.Error("failed to list learner progress: %v", err)
		return nil, errors.NewInternalError(err)
	}
	rows = s.overlay(learnerID, rows)

	byUnit := make(map[string][]models.ActivityProgress)
	for _, r := range rows {
		byUnit[r.UnitID] = append(byUnit[r.UnitID], r)
	}

	stats := &models.LearnerStats{LearnerID: learnerID}
	var lastLevel, lastUnit string
	for _, level := range s.content.Levels() {
		for i := range level.Units {
			unit := &level.Units[i]
			up := s.unitProgress(unit, byUnit[unit.ID])
			for _, pct := range up.Activities {
				stats.ActivitiesStarted++
				stats.TotalPoints += pct
				if pct >= mastery.MaxPercent {
					stats.ActivitiesCompleted++
				}
			}
			if up.Percent >= mastery.MaxPercent {
				stats.UnitsCompleted++
			} else if stats.CurrentUnitID == "" {
				stats.CurrentLevelID = level.ID
				stats.CurrentUnitID = unit.ID
			}
			lastLevel, lastUnit = level.ID, unit.ID
		}
	}
	if stats.CurrentUnitID == "" {
		stats.CurrentLevelID, stats.CurrentUnitID = lastLevel, lastUnit
	}
	return stats, nil
}

func (s *masteryService) Unsynced(ctx context.Context, learnerID string) []models.UnsyncedWrite {
	return s.writer.Unsynced(learnerID)
}

// Flush waits for queued writes and reports a SyncError if any of the
// learner's writes gave up.
func (s *masteryService) Flush(ctx context.Context, learnerID string) error {
	if err := s.writer.Drain(ctx); err != nil {
		return errors.NewSyncError(learnerID, err)
	}
	if failed := s.writer.Unsynced(learnerID); len(failed) > 0 {
		return errors.NewSyncError(failed[0].Key.String(), stderrors.New(failed[0].LastError))
	}
	return nil
}

// itemCount resolves the content set size, mapping curriculum problems onto
// application errors.
func (s *masteryService) itemCount(unitID string, activity models.ActivityType) (int, error) {
	if !s.content.Offers(activity) {
		return 0, errors.NewValidationError("activity", "not offered by the curriculum: "+string(activity))
	}
	items, err := s.content.Items(unitID, activity)
	if err != nil {
		return 0, errors.NewNotFoundError("unit", unitID)
	}
	if len(items) == 0 {
		return 0, errors.NewConfigurationError(unitID, string(activity))
	}
	return len(items), nil
}

// current prefers the in-memory value over storage; a missing row is the
// zero value, which reads as 0 percent.
func (s *masteryService) current(ctx context.Context, key models.ProgressKey) (models.ActivityProgress, error) {
	if p, ok := s.writer.Latest(key); ok {
		return p, nil
	}
	p, err := s.repo.Get(ctx, key)
	if err != nil || p == nil {
		return models.ActivityProgress{Percent: mastery.MinPercent}, err
	}
	return *p, nil
}

// stamp returns the write time for a new value. It never goes behind the
// value it replaces, so a clock stepping back cannot make storage reject the
// write as stale.
func (s *masteryService) stamp(prev time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(prev) {
		return prev.UTC().Add(time.Microsecond)
	}
	return now
}

// overlay replaces stored rows with newer values still held by the writer.
func (s *masteryService) overlay(learnerID string, rows []models.ActivityProgress) []models.ActivityProgress {
	pending := s.writer.LatestFor(learnerID)
	if len(pending) == 0 {
		return rows
	}
	idx := make(map[models.ProgressKey]int, len(rows))
	for i, r := range rows {
		idx[r.Key()] = i
	}
	for _, p := range pending {
		if i, ok := idx[p.Key()]; ok {
			rows[i] = p
			continue
		}
		rows = append(rows, p)
	}
	return rows
}

func (s *masteryService) unitProgress(unit *curriculum.Unit, rows []models.ActivityProgress) *models.UnitProgress {
	activities := make(map[models.ActivityType]int)
	for _, r := range rows {
		if r.UnitID != unit.ID || !s.content.Offers(r.Activity) {
			continue
		}
		activities[r.Activity] = r.Percent
	}
	return &models.UnitProgress{
		UnitID:             unit.ID,
		UnitNumber:         unit.Number,
		Title:              unit.Title,
		Percent:            mastery.AggregateUnit(activities, s.expected),
		ExpectedActivities: s.expected,
		Activities:         activities,
	}
}
