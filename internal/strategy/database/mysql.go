package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"equity-screener/pkg/types"
)

// ErrNotFound 标的或股票池不存在
var ErrNotFound = errors.New("not found")

// Manager 数据库管理器：合约主数据和股票池
type Manager struct {
	db     *gorm.DB
	config types.MySQLConfig
}

// Instrument 合约主数据模型
type Instrument struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Exchange  string    `gorm:"type:varchar(8);not null;uniqueIndex:uk_exchange_token;index:idx_exchange_symbol" json:"exchange"`
	Token     string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_exchange_token" json:"token"`
	Symbol    string    `gorm:"type:varchar(64);not null;index:idx_exchange_symbol" json:"symbol"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatchlistMember 股票池成员模型
type WatchlistMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Exchange  string    `gorm:"type:varchar(8);not null;uniqueIndex:uk_list_token" json:"exchange"`
	ListName  string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_list_token" json:"list_name"`
	Token     string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_list_token" json:"token"`
	Position  int       `gorm:"default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// NewManager 创建数据库管理器
func NewManager(config types.MySQLConfig) (*Manager, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)

	// 配置GORM日志
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	manager := &Manager{
		db:     db,
		config: config,
	}

	// 自动迁移表结构
	if err := manager.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	zap.L().Info("✅ MySQL数据库连接成功",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.Database))

	return manager, nil
}

// AutoMigrate 自动迁移表结构
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(
		&Instrument{},
		&WatchlistMember{},
	)
}

// ToInstrument 转换为领域类型
func (i Instrument) ToInstrument() types.Instrument {
	return types.Instrument{
		Symbol:   i.Symbol,
		Exchange: types.Exchange(i.Exchange),
		Token:    i.Token,
	}
}

// UpsertInstruments 批量写入合约主数据，(交易所, token) 冲突时更新代码和名称
func (m *Manager) UpsertInstruments(ctx context.Context, instruments []Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exchange"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"symbol", "name", "updated_at"}),
	}).CreateInBatches(instruments, 500).Error
	if err != nil {
		return fmt.Errorf("批量写入合约数据失败: %w", err)
	}

	zap.L().Debug("✅ 批量写入合约数据完成",
		zap.Int("count", len(instruments)),
		zap.String("exchange", instruments[0].Exchange))

	return nil
}

// ResolveInstrument 根据token查找标的
func (m *Manager) ResolveInstrument(ctx context.Context, exchange types.Exchange, token string) (types.Instrument, error) {
	var row Instrument
	err := m.db.WithContext(ctx).
		Where("exchange = ? AND token = ?", string(exchange), token).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Instrument{}, fmt.Errorf("instrument %s:%s: %w", exchange, token, ErrNotFound)
	}
	if err != nil {
		return types.Instrument{}, err
	}
	return row.ToInstrument(), nil
}

// Lists 某交易所的股票池名称
func (m *Manager) Lists(ctx context.Context, exchange types.Exchange) ([]string, error) {
	var names []string
	err := m.db.WithContext(ctx).Model(&WatchlistMember{}).
		Where("exchange = ?", string(exchange)).
		Distinct("list_name").
		Order("list_name").
		Pluck("list_name", &names).Error
	return names, err
}

// Tokens 股票池成员token，按录入顺序
func (m *Manager) Tokens(ctx context.Context, exchange types.Exchange, list string) ([]string, error) {
	var tokens []string
	err := m.db.WithContext(ctx).Model(&WatchlistMember{}).
		Where("exchange = ? AND list_name = ?", string(exchange), normalizeListName(list)).
		Order("position, id").
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("list %s:%s: %w", exchange, list, ErrNotFound)
	}
	return tokens, nil
}

// SaveWatchlist 整体替换股票池成员
func (m *Manager) SaveWatchlist(ctx context.Context, exchange types.Exchange, list string, tokens []string) error {
	name := normalizeListName(list)
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exchange = ? AND list_name = ?", string(exchange), name).
			Delete(&WatchlistMember{}).Error; err != nil {
			return err
		}
		members := WatchlistMembers(exchange, name, tokens)
		if len(members) == 0 {
			return nil
		}
		return tx.CreateInBatches(members, 500).Error
	})
}

// WatchlistMembers 构造股票池成员，去重并保留顺序
func WatchlistMembers(exchange types.Exchange, list string, tokens []string) []WatchlistMember {
	seen := make(map[string]struct{}, len(tokens))
	members := make([]WatchlistMember, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		members = append(members, WatchlistMember{
			Exchange: string(exchange),
			ListName: list,
			Token:    token,
			Position: len(members),
		})
	}
	return members
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
