package registry

import (
	"time"

	"github.com/growtharena/edge/database"
	"github.com/growtharena/edge/tenancy"
	"github.com/growtharena/edge/utils/id-generator/ulid"

	"gorm.io/gorm"
	"gorm.io/plugin/soft_delete"
)

/* ========================================================================
 * Organization Model - 组织模型
 * ========================================================================
 * 职责: 租户注册表的持久化模型，是所有租户配置的权威来源
 * 技术: GORM + PostgreSQL, JSONB 存储品牌配置, soft_delete 标记删除
 * 说明: 边缘网关只消费 TenantConfig 快照；本模型归 registryd 所有
 * ======================================================================== */

// Organization 一个租户组织的权威记录
// 子域名全局唯一；自定义域名仅在验证通过后参与解析
type Organization struct {
	ID         string                `json:"id" gorm:"primaryKey;size:26;comment:主键(ULID)"`
	CreateTime time.Time             `json:"create_time" gorm:"column:create_time;autoCreateTime;comment:创建时间"`
	UpdateTime time.Time             `json:"update_time" gorm:"column:update_time;autoUpdateTime;comment:更新时间"`
	Deleted    soft_delete.DeletedAt `json:"-" gorm:"column:deleted;default:0;softDelete:flag;comment:软删除标记(1=已删除)"`

	Name      string `json:"name" gorm:"size:128;not null;comment:组织名称" validate:"required" error_msg:"required:name is required"`
	Subdomain string `json:"subdomain" gorm:"size:63;uniqueIndex;not null;comment:子域名" validate:"required,hostname_rfc1123" error_msg:"required:subdomain is required"`

	CustomDomain         string `json:"custom_domain,omitempty" gorm:"size:253;index;comment:自定义域名"`
	CustomDomainVerified bool   `json:"custom_domain_verified" gorm:"default:false;comment:自定义域名是否已验证"`

	Branding database.JSONB `json:"branding" gorm:"type:jsonb;comment:品牌配置"`

	Plan               string    `json:"plan" gorm:"size:16;default:starter;comment:订阅套餐"`
	SubscriptionStatus string    `json:"subscription_status" gorm:"size:16;default:none;comment:订阅状态"`
	CurrentPeriodEnd   time.Time `json:"current_period_end" gorm:"comment:当前计费周期结束时间"`
	CancelAtPeriodEnd  bool      `json:"cancel_at_period_end" gorm:"default:false;comment:周期结束后是否取消"`
	GraceEndsAt        time.Time `json:"grace_ends_at" gorm:"comment:欠费宽限期截止时间"`

	FeedEnabled               bool   `json:"feed_enabled" gorm:"default:true;comment:是否启用动态流"`
	CoachingPromo             string `json:"coaching_promo,omitempty" gorm:"size:64;comment:教练推广位配置"`
	ProgramEmptyStateBehavior string `json:"program_empty_state_behavior,omitempty" gorm:"size:32;comment:课程空状态行为"`
	SquadEmptyStateBehavior   string `json:"squad_empty_state_behavior,omitempty" gorm:"size:32;comment:小组空状态行为"`
}

// BeforeCreate GORM 钩子：在创建记录前自动生成 ULID 主键
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = ulid.GenerateString()
	}
	return nil
}

// TableName 组织表名
func (Organization) TableName() string {
	return "organizations"
}

// VerifiedCustomDomain returns the custom domain only once verification
// has passed. Unverified domains never participate in resolution.
func (o *Organization) VerifiedCustomDomain() string {
	if o.CustomDomainVerified {
		return o.CustomDomain
	}
	return ""
}

// TenantConfig converts the authoritative record into the read-only
// snapshot served to the edge and written into the cache.
func (o *Organization) TenantConfig() *tenancy.TenantConfig {
	var branding tenancy.Branding
	if o.Branding != nil {
		branding = tenancy.Branding{
			PrimaryColor: stringField(o.Branding, "primaryColor"),
			AccentColor:  stringField(o.Branding, "accentColor"),
			LogoURL:      stringField(o.Branding, "logoUrl"),
			Title:        stringField(o.Branding, "title"),
		}
	}
	return &tenancy.TenantConfig{
		OrganizationID:       o.ID,
		Subdomain:            o.Subdomain,
		VerifiedCustomDomain: o.VerifiedCustomDomain(),
		Branding:             branding,
		Subscription: tenancy.Subscription{
			Plan:              tenancy.ParsePlan(o.Plan),
			Status:            tenancy.SubscriptionStatus(o.SubscriptionStatus),
			CurrentPeriodEnd:  o.CurrentPeriodEnd,
			CancelAtPeriodEnd: o.CancelAtPeriodEnd,
			GraceEndsAt:       o.GraceEndsAt,
		},
		FeedEnabled:               o.FeedEnabled,
		CoachingPromo:             o.CoachingPromo,
		ProgramEmptyStateBehavior: o.ProgramEmptyStateBehavior,
		SquadEmptyStateBehavior:   o.SquadEmptyStateBehavior,
	}
}

func stringField(m database.JSONB, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
