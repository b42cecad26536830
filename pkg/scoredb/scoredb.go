// Package scoredb keeps a local history of evaluation runs in sqlite, so you
// can compare methods across tuning iterations without re-running old
// evaluations.
package scoredb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/eval"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/report"
)

type ScoreDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create a score DB
func Open(logger logs.Log, dbFilename string) (*ScoreDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	scoreDB, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &ScoreDB{
		Log: logger,
		DB:  scoreDB,
	}, nil
}

// AddRun records one completed evaluation under the given method name.
func (s *ScoreDB) AddRun(method string, challenge eval.ChallengeResult, rep *report.Report) (*Run, error) {
	run := &Run{
		Method:    method,
		CreatedAt: dbh.MakeIntTime(time.Now()),
		FAvg:      challenge.FAvg,
		FSetup1:   challenge.FSetup1,
		FSetup2:   challenge.FSetup2,
		FSetup3:   challenge.FSetup3,
	}
	if rep != nil {
		run.Report = dbh.MakeJSONField(*rep)
	}
	if err := s.DB.Create(run).Error; err != nil {
		return nil, fmt.Errorf("Failed to record run for '%v': %w", method, err)
	}
	return run, nil
}

// Leaderboard returns runs ordered by the challenge ranking: average F first,
// setup 1 F as the tie break, oldest run wins a full tie. limit <= 0 returns
// everything.
func (s *ScoreDB) Leaderboard(limit int) ([]Run, error) {
	runs := []Run{}
	q := s.DB.Order("f_avg DESC, f_setup1 DESC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// RunsForMethod returns all runs of one method, newest first.
func (s *ScoreDB) RunsForMethod(method string) ([]Run, error) {
	runs := []Run{}
	if err := s.DB.Where("method = ?", method).Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// BestRun returns the top leaderboard entry, or nil if the DB is empty.
func (s *ScoreDB) BestRun() (*Run, error) {
	runs, err := s.Leaderboard(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}
