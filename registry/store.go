package registry

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

/* ========================================================================
 * Organization Store - 组织存储
 * ========================================================================
 * 职责: 组织记录的 CRUD，registryd 的唯一数据访问入口
 * 技术: GORM, 软删除透明生效（Deleted=1 的记录对所有查询不可见）
 * ======================================================================== */

// ErrNotFound 组织不存在（或已被软删除）
var ErrNotFound = errors.New("registry: organization not found")

// Store 组织记录的数据访问层
type Store struct {
	db *gorm.DB
}

// NewStore 创建组织存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate 同步组织表结构
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Organization{})
}

// Create 创建组织，主键由 BeforeCreate 钩子生成
func (s *Store) Create(ctx context.Context, org *Organization) error {
	return s.db.WithContext(ctx).Create(org).Error
}

// Update 全量更新组织记录
func (s *Store) Update(ctx context.Context, org *Organization) error {
	result := s.db.WithContext(ctx).Model(org).
		Select("*").
		Omit("id", "create_time", "deleted").
		Updates(org)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 软删除组织；缓存条目由调用方通过事件驱动回收
func (s *Store) Delete(ctx context.Context, id string) (*Organization, error) {
	org, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(org).Error; err != nil {
		return nil, err
	}
	return org, nil
}

// GetByID 按主键查询
func (s *Store) GetByID(ctx context.Context, id string) (*Organization, error) {
	return s.getBy(ctx, "id = ?", id)
}

// GetBySubdomain 按子域名查询
func (s *Store) GetBySubdomain(ctx context.Context, subdomain string) (*Organization, error) {
	return s.getBy(ctx, "subdomain = ?", subdomain)
}

// GetByCustomDomain 按已验证的自定义域名查询
func (s *Store) GetByCustomDomain(ctx context.Context, domain string) (*Organization, error) {
	return s.getBy(ctx, "custom_domain = ? AND custom_domain_verified = ?", domain, true)
}

func (s *Store) getBy(ctx context.Context, query string, args ...interface{}) (*Organization, error) {
	var org Organization
	err := s.db.WithContext(ctx).Where(query, args...).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// List 分页列出组织，按创建时间倒序
func (s *Store) List(ctx context.Context, page, pageSize int) ([]Organization, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Organization{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orgs []Organization
	err := s.db.WithContext(ctx).
		Order("create_time DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orgs).Error
	if err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}
