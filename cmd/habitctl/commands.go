package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

var now = time.Now

// habitFile is the YAML input format.
type habitFile struct {
	Habits []habit.Habit    `yaml:"habits"`
	Logs   []habit.HabitLog `yaml:"logs"`
}

type options struct {
	file    string
	date    string
	habitID string
	output  string
	watch   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "habitctl",
		Short:         "Evaluate habits and logs from a YAML file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "habits.yaml", "YAML file with habits and logs")
	flags.StringVarP(&opts.date, "date", "d", "", "date to evaluate (YYYY-MM-DD, default today)")
	flags.StringVar(&opts.habitID, "habit", "", "only evaluate this habit id")
	flags.StringVarP(&opts.output, "output", "o", "json", "output format: json or table")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "re-evaluate whenever --file changes")

	root.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Streaks and completion rate as of --date",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opts, statsReport)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Classification of each habit's log on --date",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opts, statusReport)
			},
		},
		&cobra.Command{
			Use:   "due",
			Short: "Habits to display on --date with their period progress",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, opts, dueReport)
			},
		},
	)
	return root
}

// result 同时携带 JSON 输出和表格输出
type result struct {
	data   any
	header []string
	rows   [][]string
}

type report func(habits []habit.Habit, logs map[string][]habit.HabitLog, date time.Time) result

func run(cmd *cobra.Command, opts *options, build report) error {
	if opts.output != "json" && opts.output != "table" {
		return fmt.Errorf("invalid --output %q: want json or table", opts.output)
	}
	once := func() error {
		res, err := evaluate(opts, build)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), opts.output, res)
	}
	if !opts.watch {
		return once()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return watchFile(ctx, opts.file, 200*time.Millisecond, once, cmd.ErrOrStderr())
}

func evaluate(opts *options, build report) (result, error) {
	date := habit.StartOfDay(now())
	if opts.date != "" {
		d, err := habit.ParseDateKey(opts.date)
		if err != nil {
			return result{}, fmt.Errorf("invalid --date %q: %w", opts.date, err)
		}
		date = d
	}

	in, err := loadFile(opts.file)
	if err != nil {
		return result{}, err
	}
	habits, err := selectHabits(in.Habits, opts.habitID)
	if err != nil {
		return result{}, err
	}

	logs := make(map[string][]habit.HabitLog, len(habits))
	for _, l := range in.Logs {
		logs[l.HabitID] = append(logs[l.HabitID], l)
	}
	return build(habits, logs, date), nil
}

func loadFile(path string) (*habitFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var in habitFile
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, h := range in.Habits {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("habit %q: %w", h.ID, err)
		}
	}
	return &in, nil
}

func selectHabits(habits []habit.Habit, id string) ([]habit.Habit, error) {
	if id == "" {
		return habits, nil
	}
	for _, h := range habits {
		if h.ID == id {
			return []habit.Habit{h}, nil
		}
	}
	return nil, fmt.Errorf("habit %q not found", id)
}

type statsRow struct {
	HabitID string `json:"habit_id"`
	habit.Stats
}

func statsReport(habits []habit.Habit, logs map[string][]habit.HabitLog, date time.Time) result {
	rows := make([]statsRow, 0, len(habits))
	res := result{header: []string{"HABIT", "CURRENT", "BEST", "RATE", "DONE", "PROGRESS"}}
	for _, h := range habits {
		s := habit.ComputeStats(h, logs[h.ID], date)
		rows = append(rows, statsRow{HabitID: h.ID, Stats: s})
		res.rows = append(res.rows, []string{
			h.ID,
			strconv.Itoa(s.CurrentStreak),
			strconv.Itoa(s.BestStreak),
			strconv.FormatFloat(s.CompletionRate, 'f', 2, 64) + "%",
			fmt.Sprintf("%d/%d", s.DaysCompleted, s.ExpectedDays),
			strconv.FormatFloat(s.AccumulatedProgress, 'f', -1, 64),
		})
	}
	res.data = map[string]any{"reference_date": habit.DateKey(date), "habits": rows}
	return res
}

type statusRow struct {
	HabitID string `json:"habit_id"`
	Active  bool   `json:"active"`
	habit.Classification
}

func statusReport(habits []habit.Habit, logs map[string][]habit.HabitLog, date time.Time) result {
	key := habit.DateKey(date)
	rows := make([]statusRow, 0, len(habits))
	res := result{header: []string{"HABIT", "ACTIVE", "STATUS", "PROGRESS"}}
	for _, h := range habits {
		var found *habit.HabitLog
		for i := range logs[h.ID] {
			if logs[h.ID][i].Date == key {
				found = &logs[h.ID][i]
			}
		}
		row := statusRow{
			HabitID:        h.ID,
			Active:         habit.IsDateActiveForStatistics(h, date),
			Classification: habit.ClassifyLog(h, found),
		}
		rows = append(rows, row)
		res.rows = append(res.rows, []string{
			h.ID,
			strconv.FormatBool(row.Active),
			string(row.Status),
			strconv.Itoa(int(row.Progress*100)) + "%",
		})
	}
	res.data = map[string]any{"date": key, "habits": rows}
	return res
}

type dueRow struct {
	HabitID string `json:"habit_id"`
	Done    int    `json:"done"`
	Quota   int    `json:"quota"`
}

func dueReport(habits []habit.Habit, logs map[string][]habit.HabitLog, date time.Time) result {
	due := habit.DueOn(habits, logs, date)
	rows := make([]dueRow, 0, len(due))
	res := result{header: []string{"HABIT", "DONE", "QUOTA"}}
	for _, h := range due {
		done, quota := habit.PeriodProgress(h, logs[h.ID], date)
		rows = append(rows, dueRow{HabitID: h.ID, Done: done, Quota: quota})
		res.rows = append(res.rows, []string{h.ID, strconv.Itoa(done), strconv.Itoa(quota)})
	}
	res.data = map[string]any{"date": habit.DateKey(date), "habits": rows}
	return res
}
