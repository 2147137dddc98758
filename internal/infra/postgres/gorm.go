package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petermyo/DecentralizeFileShare/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// NewGorm opens the database that stores access events.
func NewGorm(cfg config.PostgresConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(ConnString(cfg)), &gorm.Config{
		Logger:                                   newZapGormLogger(logger),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: retrieve sql db: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if d := parseDuration(cfg.MaxConnLifetime); d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	} else {
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
	if d := parseDuration(cfg.MaxConnIdleTime); d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}
	return db, nil
}

// AutoMigrate uses GORM to perform schema migrations for the provided models.
func AutoMigrate(ctx context.Context, db *gorm.DB, models ...interface{}) error {
	if db == nil || len(models) == 0 {
		return nil
	}
	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("postgres: auto migrate: %w", err)
	}
	return nil
}

// zapGormLogger routes GORM's logging through zap.
type zapGormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
}

func newZapGormLogger(l *zap.Logger) gormlogger.Interface {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapGormLogger{log: l.Named("gorm").WithOptions(zap.AddCallerSkip(3)), level: gormlogger.Warn}
}

func (z *zapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *z
	clone.level = level
	return &clone
}

func (z *zapGormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Info {
		z.log.Sugar().Infof(msg, args...)
	}
}

func (z *zapGormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Warn {
		z.log.Sugar().Warnf(msg, args...)
	}
}

func (z *zapGormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Error {
		z.log.Sugar().Errorf(msg, args...)
	}
}

func (z *zapGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && z.level >= gormlogger.Error:
		sql, rows := fc()
		z.log.Error("query failed", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed), zap.Error(err))
	case elapsed > slowQueryThreshold && z.level >= gormlogger.Warn:
		sql, rows := fc()
		z.log.Warn("slow query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	case z.level >= gormlogger.Info:
		sql, rows := fc()
		z.log.Debug("query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	}
}
