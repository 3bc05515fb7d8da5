package infrastructure

import (
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"merchdash/internal/pkg/bootstrap"
)

// NormalizeDSN 保证时间字段能被正确解析为 time.Time，并统一使用 UTC。
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// 驱动会把 charset 解析到私有字段，只能按原始串判断调用方是否指定过
	if !strings.Contains(dsn, "charset=") {
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

// GormConfig 是所有数据库连接共用的 GORM 配置。
// Range 可能来自远端目录服务，因此不创建外键约束。
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormlogger.New(zerologWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// OpenMySQL 打开 MySQL 连接并按配置设置连接池。
func OpenMySQL(cfg bootstrap.MySQLConfig) (*gorm.DB, error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(gormmysql.Open(dsn), GormConfig())
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cfg.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&RangeModel{}, &ConditionModel{}, &BenefitModel{}, &OfferModel{}); err != nil {
		return errors.Wrap(err, "auto migrate offer tables")
	}
	return nil
}

// zerologWriter 把 GORM 的日志转到 zerolog。
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}
