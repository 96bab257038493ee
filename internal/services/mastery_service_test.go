package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vytor/phonicsmastery/internal/curriculum"
	apperrors "github.com/vytor/phonicsmastery/internal/errors"
	"github.com/vytor/phonicsmastery/internal/models"
	"github.com/vytor/phonicsmastery/internal/repository"
	"github.com/vytor/phonicsmastery/internal/repository/sqlstore"
	"github.com/vytor/phonicsmastery/internal/services"
	"github.com/vytor/phonicsmastery/internal/syncqueue"
	"github.com/vytor/phonicsmastery/internal/testutil"
	"github.com/vytor/phonicsmastery/internal/testutil/mocks"
	"github.com/vytor/phonicsmastery/internal/worker"
)

const testCurriculum = `
activities: [sight-word-pop, word-spy, story-reader, sentence-builder, phonics-builder]
levels:
  - id: l1
    title: Level One
    units:
      - id: u1
        number: 1
        title: Short a
        sight_words: [a, an, the, is, and, has, have, on, in, it]
        decodable: [cat, hat, bat]
        sentences: [The cat sat.]
      - id: u2
        number: 2
        title: Short e
        sight_words: [see]
        decodable: [pet, net]
        sentences: [I see a pet.]
`

func testContent(t *testing.T) *curriculum.Curriculum {
	t.Helper()
	c, err := curriculum.Parse([]byte(testCurriculum))
	require.NoError(t, err)
	return c
}

// fixedClock advances one second per call so every write is newer than the last.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type MasteryServiceSuite struct {
	suite.Suite
	repo    repository.ProgressRepository
	queue   *syncqueue.Queue
	pool    *worker.Pool
	service services.MasteryService
	ctx     context.Context
}

func (s *MasteryServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = sqlstore.NewProgressRepository(testutil.NewTestDB(s.T()))
	s.pool = worker.NewPool(2, 32)
	s.pool.Start(s.ctx)
	s.queue = syncqueue.New(s.repo, s.pool, syncqueue.Options{MaxAttempts: 2, Backoff: time.Millisecond})
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.service = services.NewMasteryService(s.repo, s.queue, testContent(s.T()), services.MasteryOptions{Now: clock.Now})
}

func (s *MasteryServiceSuite) TearDownTest() {
	s.pool.Stop()
}

func (s *MasteryServiceSuite) drain() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	s.Require().NoError(s.queue.Drain(ctx))
}

func (s *MasteryServiceSuite) record(activity models.ActivityType, outcome models.Outcome) *models.RecordResult {
	res, err := s.service.RecordOutcome(s.ctx, "ana", "u1", activity, outcome)
	s.Require().NoError(err)
	return res
}

func (s *MasteryServiceSuite) TestRecordOutcome_MixedSequence() {
	var got []int
	for _, o := range []models.Outcome{models.OutcomeCorrect, models.OutcomeCorrect, models.OutcomeIncorrect, models.OutcomeCorrect} {
		got = append(got, s.record(models.ActivitySightWordPop, o).Percent)
	}
	s.Assert().Equal([]int{10, 20, 10, 20}, got)

	s.drain()
	p, err := s.repo.Get(s.ctx, testutil.Key("ana", "u1", models.ActivitySightWordPop))
	s.Require().NoError(err)
	s.Require().NotNil(p)
	s.Assert().Equal(20, p.Percent)
}

func (s *MasteryServiceSuite) TestRecordOutcome_FirstIncorrectStaysAtZero() {
	res := s.record(models.ActivityWordSpy, models.OutcomeIncorrect)
	s.Assert().Equal(0, res.Percent)
	s.Assert().False(res.Completed)
	s.Assert().Equal(models.SyncStatusPending, res.SyncStatus)
}

func (s *MasteryServiceSuite) TestRecordOutcome_CleanPassCompletes() {
	var res *models.RecordResult
	for i := 0; i < 10; i++ {
		res = s.record(models.ActivitySightWordPop, models.OutcomeCorrect)
	}
	s.Assert().Equal(100, res.Percent)
	s.Assert().True(res.Completed)

	res = s.record(models.ActivitySightWordPop, models.OutcomeIncorrect)
	s.Assert().Equal(100, res.Percent, "completed activities keep their score")
	s.Assert().True(res.Completed)
}

func (s *MasteryServiceSuite) TestRecordOutcome_RoundingDriftIsBounded() {
	var res *models.RecordResult
	for i := 0; i < 3; i++ {
		res = s.record(models.ActivityWordSpy, models.OutcomeCorrect)
	}
	s.Assert().InDelta(100, res.Percent, 1)
}

func (s *MasteryServiceSuite) TestCompleteAndReset() {
	s.record(models.ActivityWordSpy, models.OutcomeCorrect)

	res, err := s.service.CompleteActivity(s.ctx, "ana", "u1", models.ActivityWordSpy)
	s.Require().NoError(err)
	s.Assert().Equal(100, res.Percent)
	s.Assert().True(res.Completed)

	res, err = s.service.ResetActivity(s.ctx, "ana", "u1", models.ActivityWordSpy)
	s.Require().NoError(err)
	s.Assert().Equal(0, res.Percent)
	s.Assert().False(res.Completed)

	s.Assert().Equal(33, s.record(models.ActivityWordSpy, models.OutcomeCorrect).Percent)
}

func (s *MasteryServiceSuite) TestEmptyContentIsConfigurationError() {
	_, err := s.service.RecordOutcome(s.ctx, "ana", "u1", models.ActivityStoryReader, models.OutcomeCorrect)
	s.Require().Error(err)
	s.Assert().True(errors.Is(err, apperrors.ErrEmptyContent))
	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Assert().Equal(apperrors.ErrCodeConfiguration, appErr.Code)

	_, err = s.service.Resume(s.ctx, "ana", "u1", models.ActivityStoryReader)
	s.Assert().True(errors.Is(err, apperrors.ErrEmptyContent))

	res, err := s.service.ResetActivity(s.ctx, "ana", "u1", models.ActivityStoryReader)
	s.Require().NoError(err, "reset does not score anything")
	s.Assert().Equal(0, res.Percent)
}

func (s *MasteryServiceSuite) TestUnknownUnitAndActivity() {
	_, err := s.service.RecordOutcome(s.ctx, "ana", "nope", models.ActivityWordSpy, models.OutcomeCorrect)
	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Assert().Equal(apperrors.ErrCodeNotFound, appErr.Code)

	_, err = s.service.RecordOutcome(s.ctx, "ana", "u1", models.ActivityWordGrid, models.OutcomeCorrect)
	appErr, ok = apperrors.As(err)
	s.Require().True(ok)
	s.Assert().Equal(apperrors.ErrCodeValidation, appErr.Code)

	_, err = s.service.RecordOutcome(s.ctx, "ana", "u1", models.ActivityWordSpy, models.Outcome("maybe"))
	appErr, ok = apperrors.As(err)
	s.Require().True(ok)
	s.Assert().Equal(apperrors.ErrCodeValidation, appErr.Code)
}

func (s *MasteryServiceSuite) TestResume() {
	rp, err := s.service.Resume(s.ctx, "ana", "u1", models.ActivitySightWordPop)
	s.Require().NoError(err)
	s.Assert().Equal(models.ResumePoint{Percent: 0, ResumeIndex: 0, ItemCount: 10}, *rp)

	for i := 0; i < 5; i++ {
		s.record(models.ActivitySightWordPop, models.OutcomeCorrect)
	}
	s.drain()

	rp, err = s.service.Resume(s.ctx, "ana", "u1", models.ActivitySightWordPop)
	s.Require().NoError(err)
	s.Assert().Equal(50, rp.Percent)
	s.Assert().Equal(5, rp.ResumeIndex)

	_, err = s.service.CompleteActivity(s.ctx, "ana", "u1", models.ActivitySightWordPop)
	s.Require().NoError(err)
	rp, err = s.service.Resume(s.ctx, "ana", "u1", models.ActivitySightWordPop)
	s.Require().NoError(err)
	s.Assert().Equal(9, rp.ResumeIndex)
	s.Assert().True(rp.Completed)
}

func (s *MasteryServiceSuite) TestConcurrentOutcomesSerialize() {
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RecordOutcome(s.ctx, "ana", "u1", models.ActivitySightWordPop, models.OutcomeCorrect)
			s.Assert().NoError(err)
		}()
	}
	wg.Wait()
	s.drain()

	p, err := s.repo.Get(s.ctx, testutil.Key("ana", "u1", models.ActivitySightWordPop))
	s.Require().NoError(err)
	s.Assert().Equal(60, p.Percent, "no outcome may be lost to an interleaved write")
}

func (s *MasteryServiceSuite) TestUnitProgress_CountsUnattemptedAsZero() {
	_, err := s.service.CompleteActivity(s.ctx, "ana", "u1", models.ActivityWordSpy)
	s.Require().NoError(err)

	up, err := s.service.UnitProgress(s.ctx, "ana", "u1")
	s.Require().NoError(err)
	s.Assert().Equal(20, up.Percent)
	s.Assert().Equal(5, up.ExpectedActivities)
	s.Assert().Equal(map[models.ActivityType]int{models.ActivityWordSpy: 100}, up.Activities)

	s.drain()
	up, err = s.service.UnitProgress(s.ctx, "ana", "u1")
	s.Require().NoError(err)
	s.Assert().Equal(20, up.Percent, "same answer once persisted")

	_, err = s.service.UnitProgress(s.ctx, "ana", "u9")
	s.Assert().Error(err)
}

func (s *MasteryServiceSuite) TestLevelProgressAndStats() {
	for _, a := range []models.ActivityType{models.ActivitySightWordPop, models.ActivityWordSpy, models.ActivityStoryReader, models.ActivitySentenceBuilder, models.ActivityPhonicsBuilder} {
		if a == models.ActivityStoryReader {
			continue
		}
		_, err := s.service.CompleteActivity(s.ctx, "ana", "u1", a)
		s.Require().NoError(err)
	}
	s.record(models.ActivitySightWordPop, models.OutcomeCorrect)
	_, err := s.service.RecordOutcome(s.ctx, "ana", "u2", models.ActivityWordSpy, models.OutcomeCorrect)
	s.Require().NoError(err)
	s.drain()

	lp, err := s.service.LevelProgress(s.ctx, "ana", "l1")
	s.Require().NoError(err)
	s.Require().Len(lp.Units, 2)
	s.Assert().Equal(80, lp.Units[0].Percent)
	s.Assert().Equal(10, lp.Units[1].Percent)
	s.Assert().Equal(45, lp.Percent)

	stats, err := s.service.Stats(s.ctx, "ana")
	s.Require().NoError(err)
	s.Assert().Equal(5, stats.ActivitiesStarted)
	s.Assert().Equal(4, stats.ActivitiesCompleted)
	s.Assert().Equal(0, stats.UnitsCompleted)
	s.Assert().Equal(450, stats.TotalPoints)
	s.Assert().Equal("l1", stats.CurrentLevelID)
	s.Assert().Equal("u1", stats.CurrentUnitID)

	_, err = s.service.LevelProgress(s.ctx, "ana", "l7")
	appErr, ok := apperrors.As(err)
	s.Require().True(ok)
	s.Assert().Equal(apperrors.ErrCodeNotFound, appErr.Code)
}

func (s *MasteryServiceSuite) TestFlush() {
	s.record(models.ActivityWordSpy, models.OutcomeCorrect)
	s.Assert().NoError(s.service.Flush(s.ctx, "ana"))
	s.Assert().Empty(s.service.Unsynced(s.ctx, "ana"))
}

func TestMasteryServiceSuite(t *testing.T) {
	suite.Run(t, new(MasteryServiceSuite))
}

func TestMasteryService_StorageReadFailure(t *testing.T) {
	repo := new(mocks.MockProgressRepository)
	writer := new(mocks.MockProgressWriter)
	key := testutil.Key("ana", "u1", models.ActivityWordSpy)

	writer.On("Latest", key).Return(models.ActivityProgress{}, false)
	repo.On("Get", mock.Anything, key).Return(nil, errors.New("connection refused"))

	svc := services.NewMasteryService(repo, writer, testContent(t), services.MasteryOptions{})
	_, err := svc.RecordOutcome(context.Background(), "ana", "u1", models.ActivityWordSpy, models.OutcomeCorrect)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInternal, appErr.Code)
	writer.AssertNotCalled(t, "Enqueue", mock.Anything)
	repo.AssertExpectations(t)
}

func TestMasteryService_PrefersUnsavedValue(t *testing.T) {
	repo := new(mocks.MockProgressRepository)
	writer := new(mocks.MockProgressWriter)
	key := testutil.Key("ana", "u1", models.ActivitySightWordPop)

	writer.On("Latest", key).Return(testutil.Progress(key, 40, 0), true)
	writer.On("Enqueue", mock.MatchedBy(func(p models.ActivityProgress) bool {
		return p.Key() == key && p.Percent == 50
	})).Return(models.SyncStatusPending)
	writer.On("Unsynced", "ana").Return(nil)

	svc := services.NewMasteryService(repo, writer, testContent(t), services.MasteryOptions{})
	res, err := svc.RecordOutcome(context.Background(), "ana", "u1", models.ActivitySightWordPop, models.OutcomeCorrect)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Percent)
	assert.Equal(t, models.SyncStatusPending, res.SyncStatus)

	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	writer.AssertExpectations(t)
}

func TestMasteryService_ReportsEarlierGiveUps(t *testing.T) {
	writer := new(mocks.MockProgressWriter)
	key := testutil.Key("ana", "u1", models.ActivityWordSpy)
	stuck := testutil.Key("ana", "u2", models.ActivityWordSpy)

	writer.On("Latest", key).Return(testutil.Progress(key, 33, 0), true)
	writer.On("Enqueue", mock.Anything).Return(models.SyncStatusPending)
	writer.On("Unsynced", "ana").Return([]models.UnsyncedWrite{{Key: stuck, Percent: 50, Attempts: 3, LastError: "disk full"}})

	svc := services.NewMasteryService(new(mocks.MockProgressRepository), writer, testContent(t), services.MasteryOptions{})
	res, err := svc.RecordOutcome(context.Background(), "ana", "u1", models.ActivityWordSpy, models.OutcomeCorrect)
	require.NoError(t, err)
	assert.Equal(t, 66, res.Percent)
	assert.Equal(t, models.SyncStatusUnsynced, res.SyncStatus)
}

// steppingClock replays fixed instants, repeating the last one.
type steppingClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return now
}

func TestMasteryService_ClockSteppingBackKeepsLatestOutcome(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	repo := sqlstore.NewProgressRepository(database)
	pool := worker.NewPool(1, 16)
	pool.Start(ctx)
	t.Cleanup(pool.Stop)
	queue := syncqueue.New(repo, pool, syncqueue.Options{MaxAttempts: 1, Backoff: time.Millisecond})

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &steppingClock{times: []time.Time{base, base.Add(-2 * time.Second), base.Add(-time.Second)}}
	svc := services.NewMasteryService(repo, queue, testContent(t), services.MasteryOptions{Now: clock.Now})

	drain := func() {
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, queue.Drain(dctx))
	}

	var got []int
	for i := 0; i < 3; i++ {
		res, err := svc.RecordOutcome(ctx, "ana", "u1", models.ActivitySightWordPop, models.OutcomeCorrect)
		require.NoError(t, err)
		got = append(got, res.Percent)
		drain()
	}
	assert.Equal(t, []int{10, 20, 30}, got)
	assert.Empty(t, svc.Unsynced(ctx, "ana"))

	p, err := repo.Get(ctx, testutil.Key("ana", "u1", models.ActivitySightWordPop))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 30, p.Percent)
	assert.True(t, p.UpdatedAt.After(base))

	rp, err := svc.Resume(ctx, "ana", "u1", models.ActivitySightWordPop)
	require.NoError(t, err)
	assert.Equal(t, 30, rp.Percent)
	assert.Equal(t, 3, rp.ResumeIndex)
}

func TestMasteryService_FlushReportsGiveUps(t *testing.T) {
	writer := new(mocks.MockProgressWriter)
	key := testutil.Key("ana", "u1", models.ActivityWordSpy)

	writer.On("Drain", mock.Anything).Return(nil)
	writer.On("Unsynced", "ana").Return([]models.UnsyncedWrite{{Key: key, Percent: 33, Attempts: 3, LastError: "disk full"}})

	svc := services.NewMasteryService(new(mocks.MockProgressRepository), writer, testContent(t), services.MasteryOptions{})
	err := svc.Flush(context.Background(), "ana")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSyncFailed))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeSync, appErr.Code)
	assert.Equal(t, 503, appErr.Status)
}

func TestMasteryService_FlushTimeout(t *testing.T) {
	writer := new(mocks.MockProgressWriter)
	writer.On("Drain", mock.Anything).Return(context.DeadlineExceeded)

	svc := services.NewMasteryService(new(mocks.MockProgressRepository), writer, testContent(t), services.MasteryOptions{})
	err := svc.Flush(context.Background(), "ana")
	assert.True(t, errors.Is(err, apperrors.ErrSyncFailed))
}
