package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/mq"
	"github.com/growtharena/edge/utils/id-generator/snowflake"

	"go.uber.org/zap"
)

/* ========================================================================
 * Tenant Config Events - 租户配置变更事件
 * ========================================================================
 * 职责: 组织变更后发布事件，驱动边缘缓存的异步预热与回收
 * 技术: Kafka (sarama), 消息 Key = 组织 ID，保证同组织事件有序
 * ======================================================================== */

// TopicTenantConfigChanged 租户配置变更主题
const TopicTenantConfigChanged = "tenant-config-changed"

// 事件操作类型
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Event 一次组织配置变更
// Subdomain 与 CustomDomain 记录变更前后涉及的所有键，
// 使消费侧能同时回收旧键与写入新键
type Event struct {
	EventID      string `json:"eventId"`
	Op           string `json:"op"`
	OrgID        string `json:"orgId"`
	Subdomain    string `json:"subdomain,omitempty"`
	CustomDomain string `json:"customDomain,omitempty"`

	// 变更前的键；仅在域名或子域名发生变化时填写
	PrevSubdomain    string `json:"prevSubdomain,omitempty"`
	PrevCustomDomain string `json:"prevCustomDomain,omitempty"`
}

// Publisher 发布租户配置变更事件
type Publisher struct {
	producer mq.Producer
	log      *logger.Logger
}

// NewPublisher 创建事件发布器
func NewPublisher(producer mq.Producer, log *logger.Logger) *Publisher {
	return &Publisher{producer: producer, log: log}
}

// Upserted 发布组织创建或更新事件
// prev 为变更前的记录，首次创建时传 nil
func (p *Publisher) Upserted(ctx context.Context, org *Organization, prev *Organization) error {
	evt := Event{
		EventID:      snowflake.GenerateString(),
		Op:           OpUpsert,
		OrgID:        org.ID,
		Subdomain:    org.Subdomain,
		CustomDomain: org.VerifiedCustomDomain(),
	}
	if prev != nil {
		if prev.Subdomain != org.Subdomain {
			evt.PrevSubdomain = prev.Subdomain
		}
		if prevDomain := prev.VerifiedCustomDomain(); prevDomain != evt.CustomDomain {
			evt.PrevCustomDomain = prevDomain
		}
	}
	return p.publish(ctx, evt)
}

// Deleted 发布组织删除事件
func (p *Publisher) Deleted(ctx context.Context, org *Organization) error {
	return p.publish(ctx, Event{
		EventID:      snowflake.GenerateString(),
		Op:           OpDelete,
		OrgID:        org.ID,
		Subdomain:    org.Subdomain,
		CustomDomain: org.VerifiedCustomDomain(),
	})
}

func (p *Publisher) publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := mq.NewMessage(TopicTenantConfigChanged, body).WithKey(evt.OrgID)
	result, err := p.producer.SendSync(ctx, msg)
	if err != nil {
		p.log.Error("Publish tenant config event failed",
			zap.String("event_id", evt.EventID),
			zap.String("org_id", evt.OrgID),
			zap.String("op", evt.Op),
			zap.Error(err),
		)
		return err
	}

	p.log.Info("Tenant config event published",
		zap.String("event_id", evt.EventID),
		zap.String("org_id", evt.OrgID),
		zap.String("op", evt.Op),
		zap.String("msg_id", result.MsgID),
	)
	return nil
}
