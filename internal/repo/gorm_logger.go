package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQuery is the duration above which a statement is logged at warn.
const slowQuery = 200 * time.Millisecond

// queryLogger routes GORM's statement log through zerolog. SQL is logged
// with placeholders only: bound values (subscriber addresses) never reach
// the log. Lookups that find nothing and unique violations are expected
// outcomes of the subscribe flow and are not reported as failures.
type queryLogger struct {
	log   zerolog.Logger
	level logger.LogLevel
}

// NewQueryLogger returns a GORM logger writing to l at warn level.
func NewQueryLogger(l zerolog.Logger) logger.Interface {
	return &queryLogger{log: l.With().Str("component", "gorm").Logger(), level: logger.Warn}
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *q
	cp.level = level
	return &cp
}

func (q *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Info {
		q.log.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Warn {
		q.log.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Error {
		q.log.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

// ParamsFilter drops bound values before GORM renders the statement.
func (q *queryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (q *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !expected(err) && q.level >= logger.Error:
		sql, rows := fc()
		q.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case elapsed > slowQuery && q.level >= logger.Warn:
		sql, rows := fc()
		q.log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case q.level >= logger.Info:
		sql, rows := fc()
		q.log.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}

func expected(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || isDuplicate(err)
}
