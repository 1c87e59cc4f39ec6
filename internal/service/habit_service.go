package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dbcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/db"
	mqcontracts "github.com/rag133/Jeevan-saathi-sub002/contracts/mq"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/logger"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/metrics"
	"github.com/rag133/Jeevan-saathi-sub002/pkg/trace"
)

const (
	// maxProgressDays 限制一次 Progress 查询的天数
	maxProgressDays = 366
	// 统计逐日遍历，start_date 只接受最近 maxHistoryYears 年到未来 maxLeadYears 年
	maxHistoryYears = 10
	maxLeadYears    = 1
	// maxRefLeadDays 容忍客户端与服务端时区不同造成的“明天”
	maxRefLeadDays = 1
)

type HabitService struct {
	habits HabitStore
	logs   LogStore
	stats  StatsStore
	cache  StatsCache
	clock  Clock
	loc    *time.Location
	logger *zap.Logger
}

func NewHabitService(
	habits HabitStore,
	logs LogStore,
	stats StatsStore,
	cache StatsCache,
	clock Clock,
	loc *time.Location,
	logger *zap.Logger,
) *HabitService {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &HabitService{
		habits: habits,
		logs:   logs,
		stats:  stats,
		cache:  cache,
		clock:  clock,
		loc:    loc,
		logger: logger,
	}
}

// Today 返回配置时区中的当天
func (s *HabitService) Today() time.Time {
	return today(s.clock, s.loc)
}

// ParseDate 解析请求中的日期，空字符串表示今天
func (s *HabitService) ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return s.Today(), nil
	}
	d, err := habit.ParseDateKey(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return d, nil
}

func (s *HabitService) CreateHabit(ctx context.Context, userID int, title string, h habit.Habit) (*dbcontracts.HabitRecord, error) {
	log := logger.WithTrace(ctx, s.logger)

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.StartDate.IsZero() {
		h.StartDate = s.Today()
	}
	if err := h.Validate(); err != nil {
		log.Warn("Rejected invalid habit", zap.Int("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidHabit, err)
	}
	if err := s.checkStartDate(h.StartDate); err != nil {
		log.Warn("Rejected habit start date", zap.Int("user_id", userID), zap.Error(err))
		return nil, err
	}

	rec := &dbcontracts.HabitRecord{
		Habit:    h,
		UserID:   userID,
		Title:    title,
		IsActive: true,
	}
	inserted, err := s.habits.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("%w: %s", ErrHabitExists, h.ID)
	}

	log.Info("Habit created",
		zap.String("habit_id", h.ID),
		zap.Int("user_id", userID),
		zap.String("type", string(h.Type)),
	)
	return rec, nil
}

func (s *HabitService) ListHabits(ctx context.Context, userID int) ([]dbcontracts.HabitRecord, error) {
	return s.habits.ListActiveByUser(ctx, userID)
}

func (s *HabitService) DeleteHabit(ctx context.Context, userID int, habitID string) error {
	if _, err := s.ownedHabit(ctx, userID, habitID); err != nil {
		return err
	}
	if err := s.habits.Deactivate(ctx, habitID); err != nil {
		return err
	}
	s.invalidate(ctx, habitID)
	return nil
}

// RecordLog 写入（或覆盖）某天的打卡，返回这次打卡的分类结果
func (s *HabitService) RecordLog(ctx context.Context, userID int, log habit.HabitLog) (*habit.HabitLog, habit.Classification, error) {
	rec, err := s.ownedHabit(ctx, userID, log.HabitID)
	if err != nil {
		return nil, habit.Classification{}, err
	}
	if !rec.IsActive {
		return nil, habit.Classification{}, ErrHabitInactive
	}

	day, err := s.logDate(log.Date)
	if err != nil {
		return nil, habit.Classification{}, err
	}
	log.Date = habit.DateKey(day)
	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	c := habit.ClassifyLog(rec.Habit, &log)
	log.Status = string(c.Status)

	if err := s.logs.Upsert(ctx, &log, s.logEvent(ctx, rec, log.Date, "recorded", c.Status)); err != nil {
		return nil, habit.Classification{}, err
	}
	metrics.IncrementHabitLog("record", string(c.Status))
	s.invalidate(ctx, rec.ID)

	logger.WithTrace(ctx, s.logger).Info("Habit log recorded",
		zap.String("habit_id", rec.ID),
		zap.String("date", log.Date),
		zap.String("status", string(c.Status)),
	)
	return &log, c, nil
}

func (s *HabitService) DeleteLog(ctx context.Context, userID int, habitID string, date string) error {
	rec, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return err
	}
	day, err := s.ParseDate(date)
	if err != nil {
		return err
	}
	key := habit.DateKey(day)

	if err := s.logs.Delete(ctx, habitID, key, s.logEvent(ctx, rec, key, "deleted", habit.StatusNone)); err != nil {
		return err
	}
	metrics.IncrementHabitLog("delete", string(habit.StatusNone))
	s.invalidate(ctx, habitID)
	return nil
}

// Classify 返回某天打卡的状态
func (s *HabitService) Classify(ctx context.Context, userID int, habitID string, date time.Time) (habit.Classification, error) {
	rec, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return habit.Classification{}, err
	}
	logs, err := s.logs.ListByHabit(ctx, habitID)
	if err != nil {
		return habit.Classification{}, err
	}

	key := habit.DateKey(date)
	var found *habit.HabitLog
	for i := range logs {
		if logs[i].Date == key {
			found = &logs[i]
		}
	}
	return habit.ClassifyLog(rec.Habit, found), nil
}

// Stats 先查缓存，未命中时计算并回填。ref 最多比今天晚 maxRefLeadDays 天
func (s *HabitService) Stats(ctx context.Context, userID int, habitID string, ref time.Time) (habit.Stats, error) {
	if limit := s.Today().AddDate(0, 0, maxRefLeadDays); habit.StartOfDay(ref).After(limit) {
		return habit.Stats{}, fmt.Errorf("%w: reference date %s is after %s", ErrInvalidRange, habit.DateKey(ref), habit.DateKey(limit))
	}
	rec, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return habit.Stats{}, err
	}
	day := habit.DateKey(ref)

	gen, cached := s.generation(ctx, habitID)
	if cached {
		if stats, ok := s.cache.Get(ctx, habitID, gen, day); ok {
			return stats, nil
		}
	}

	logs, err := s.logs.ListByHabit(ctx, habitID)
	if err != nil {
		return habit.Stats{}, err
	}
	stats := computeStats(ctx, rec.Habit, logs, ref)

	if cached {
		s.cache.Set(ctx, habitID, gen, day, stats)
	}
	return stats, nil
}

// LatestSnapshot 返回后台最近一次持久化的统计
func (s *HabitService) LatestSnapshot(ctx context.Context, userID int, habitID string) (*dbcontracts.StatsSnapshot, error) {
	if _, err := s.ownedHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	return s.stats.Get(ctx, habitID)
}

// RefreshHabit 重新计算今天的统计并持久化，供 MQ 消费者使用
func (s *HabitService) RefreshHabit(ctx context.Context, habitID string) (habit.Stats, error) {
	rec, err := s.habits.Get(ctx, habitID)
	if err != nil {
		return habit.Stats{}, err
	}
	s.invalidate(ctx, habitID)
	gen, cached := s.generation(ctx, habitID)

	logs, err := s.logs.ListByHabit(ctx, habitID)
	if err != nil {
		return habit.Stats{}, err
	}

	ref := s.Today()
	stats := computeStats(ctx, rec.Habit, logs, ref)
	if err := s.stats.Save(ctx, habitID, ref, stats); err != nil {
		return habit.Stats{}, err
	}
	if cached {
		s.cache.Set(ctx, habitID, gen, habit.DateKey(ref), stats)
	}
	return stats, nil
}

// DueHabit 是当天需要展示的习惯及其周期进度
type DueHabit struct {
	dbcontracts.HabitRecord
	Classification habit.Classification `json:"classification"`
	Done           int                  `json:"done"`
	Quota          int                  `json:"quota"`
}

// DueToday 返回用户在 date 当天需要展示的习惯
func (s *HabitService) DueToday(ctx context.Context, userID int, date time.Time) ([]DueHabit, error) {
	records, err := s.habits.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(records))
	byID := make(map[string]dbcontracts.HabitRecord, len(records))
	habits := make([]habit.Habit, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		byID[rec.ID] = rec
		habits[i] = rec.Habit
	}

	logsByHabit, err := s.logs.ListByHabits(ctx, ids)
	if err != nil {
		return nil, err
	}

	key := habit.DateKey(date)
	due := habit.DueOn(habits, logsByHabit, date)
	result := make([]DueHabit, 0, len(due))
	for _, h := range due {
		logs := logsByHabit[h.ID]
		done, quota := habit.PeriodProgress(h, logs, date)

		var todays *habit.HabitLog
		for i := range logs {
			if logs[i].Date == key {
				todays = &logs[i]
			}
		}
		result = append(result, DueHabit{
			HabitRecord:    byID[h.ID],
			Classification: habit.ClassifyLog(h, todays),
			Done:           done,
			Quota:          quota,
		})
	}
	return result, nil
}

// Progress 返回 [from, to] 的逐日完成情况
func (s *HabitService) Progress(ctx context.Context, userID int, habitID string, from, to time.Time) ([]habit.DayProgress, error) {
	from, to = habit.StartOfDay(from), habit.StartOfDay(to)
	if to.Before(from) || to.Sub(from) > maxProgressDays*24*time.Hour {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, habit.DateKey(from), habit.DateKey(to))
	}

	rec, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	return habit.DailyProgress(rec.Habit, logs, from, to), nil
}

func (s *HabitService) ownedHabit(ctx context.Context, userID int, habitID string) (*dbcontracts.HabitRecord, error) {
	rec, err := s.habits.Get(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		logger.WithTrace(ctx, s.logger).Warn("Habit ownership mismatch",
			zap.String("habit_id", habitID),
			zap.Int("user_id", userID),
		)
		return nil, ErrForbidden
	}
	return rec, nil
}

// logDate 解析打卡日期，不接受未来的日期
func (s *HabitService) logDate(raw string) (time.Time, error) {
	day, err := s.ParseDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	if day.After(s.Today()) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrFutureDate, habit.DateKey(day))
	}
	return day, nil
}

func (s *HabitService) logEvent(ctx context.Context, rec *dbcontracts.HabitRecord, date, action string, status habit.Status) mqcontracts.HabitLogChangedPayload {
	return mqcontracts.HabitLogChangedPayload{
		EventID:    uuid.NewString(),
		TraceID:    trace.FromContext(ctx),
		HabitID:    rec.ID,
		UserID:     rec.UserID,
		Date:       date,
		Action:     action,
		Status:     string(status),
		OccurredAt: s.clock().UTC(),
	}
}

// checkStartDate 限制 start_date 的范围，避免统计从极早的日期逐日遍历
func (s *HabitService) checkStartDate(start time.Time) error {
	today := s.Today()
	earliest := today.AddDate(-maxHistoryYears, 0, 0)
	latest := today.AddDate(maxLeadYears, 0, 0)
	start = habit.StartOfDay(start)
	if start.Before(earliest) || start.After(latest) {
		return fmt.Errorf("%w: %w: start_date %s outside %s..%s", ErrInvalidHabit, ErrInvalidRange,
			habit.DateKey(start), habit.DateKey(earliest), habit.DateKey(latest))
	}
	return nil
}

// generation 必须在读取打卡记录之前调用
func (s *HabitService) generation(ctx context.Context, habitID string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gens, ok := s.cache.Generations(ctx, []string{habitID})
	if !ok {
		return 0, false
	}
	return gens[habitID], true
}

func (s *HabitService) invalidate(ctx context.Context, habitID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, habitID); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to invalidate stats cache",
			zap.String("habit_id", habitID),
			zap.Error(err),
		)
	}
}
