package registry

import (
	"context"
	"errors"
	"strconv"

	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/response"
	"github.com/growtharena/edge/validator"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

/* ========================================================================
 * Registry HTTP Handlers - 注册表 HTTP 接口
 * ========================================================================
 * 职责: 对边缘网关提供权威解析接口，对运营后台提供组织 CRUD
 * 技术: Fiber v3 + 声明式校验; 内部接口由 InternalAuth 中间件保护
 * ======================================================================== */

// Handler 注册表 HTTP 处理器
type Handler struct {
	store     *Store
	publisher *Publisher
	validate  *validator.Validator
	log       *logger.Logger
}

// NewHandler 创建注册表处理器
// publisher 可为 nil（例如本地开发未接 Kafka），此时变更不发布事件
func NewHandler(store *Store, publisher *Publisher, log *logger.Logger) *Handler {
	return &Handler{
		store:     store,
		publisher: publisher,
		validate:  validator.New(),
		log:       log,
	}
}

// RegisterInternal 注册边缘网关使用的内部接口
// 调用方必须先挂载 InternalAuth 中间件
func (h *Handler) RegisterInternal(router fiber.Router) {
	router.Get("/tenant-config", h.ResolveTenantConfig)
}

// RegisterAdmin 注册运营后台的组织管理接口
func (h *Handler) RegisterAdmin(router fiber.Router) {
	router.Post("/organizations", h.CreateOrganization)
	router.Get("/organizations", h.ListOrganizations)
	router.Get("/organizations/:id", h.GetOrganization)
	router.Put("/organizations/:id", h.UpdateOrganization)
	router.Delete("/organizations/:id", h.DeleteOrganization)
}

// ResolveTenantConfig 权威解析：按子域名或已验证的自定义域名返回快照
// 接受 ?subdomain= 或 ?domain= 之一；未命中返回 404
func (h *Handler) ResolveTenantConfig(c fiber.Ctx) error {
	subdomain := c.Query("subdomain")
	domain := c.Query("domain")

	var (
		org *Organization
		err error
	)
	switch {
	case subdomain != "":
		org, err = h.store.GetBySubdomain(c.Context(), subdomain)
	case domain != "":
		org, err = h.store.GetByCustomDomain(c.Context(), domain)
	default:
		return response.BadRequest(c, "subdomain or domain query parameter is required")
	}

	if errors.Is(err, ErrNotFound) {
		return response.NotFound(c, "organization not found", "unknown_tenant")
	}
	if err != nil {
		h.log.Error("Tenant config lookup failed", zap.Error(err))
		return response.InternalError(c, "tenant config lookup failed")
	}
	return c.JSON(org.TenantConfig())
}

// CreateOrganization 创建组织
func (h *Handler) CreateOrganization(c fiber.Ctx) error {
	var org Organization
	if err := c.Bind().Body(&org); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	org.ID = ""
	if err := h.validate.Validate(&org); err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.store.Create(c.Context(), &org); err != nil {
		h.log.Error("Create organization failed",
			zap.String("subdomain", org.Subdomain),
			zap.Error(err),
		)
		return response.InternalError(c, "create organization failed")
	}

	h.publishUpsert(c.Context(), &org, nil)
	return response.Created(c, &org)
}

// GetOrganization 按 ID 查询组织
func (h *Handler) GetOrganization(c fiber.Ctx) error {
	org, err := h.store.GetByID(c.Context(), c.Params("id"))
	if errors.Is(err, ErrNotFound) {
		return response.NotFound(c, "organization not found", "organization_not_found")
	}
	if err != nil {
		h.log.Error("Get organization failed", zap.Error(err))
		return response.InternalError(c, "get organization failed")
	}
	return response.OK(c, org)
}

// ListOrganizations 分页列出组织
func (h *Handler) ListOrganizations(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	orgs, total, err := h.store.List(c.Context(), page, pageSize)
	if err != nil {
		h.log.Error("List organizations failed", zap.Error(err))
		return response.InternalError(c, "list organizations failed")
	}
	return response.PageData(c, orgs, total, page, pageSize)
}

// UpdateOrganization 全量更新组织；子域名或域名变更会连带回收旧缓存键
func (h *Handler) UpdateOrganization(c fiber.Ctx) error {
	prev, err := h.store.GetByID(c.Context(), c.Params("id"))
	if errors.Is(err, ErrNotFound) {
		return response.NotFound(c, "organization not found", "organization_not_found")
	}
	if err != nil {
		h.log.Error("Get organization failed", zap.Error(err))
		return response.InternalError(c, "update organization failed")
	}

	var org Organization
	if err := c.Bind().Body(&org); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	org.ID = prev.ID
	if err := h.validate.Validate(&org); err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.store.Update(c.Context(), &org); err != nil {
		h.log.Error("Update organization failed",
			zap.String("org_id", org.ID),
			zap.Error(err),
		)
		return response.InternalError(c, "update organization failed")
	}

	h.publishUpsert(c.Context(), &org, prev)
	return response.OK(c, &org)
}

// DeleteOrganization 软删除组织
func (h *Handler) DeleteOrganization(c fiber.Ctx) error {
	org, err := h.store.Delete(c.Context(), c.Params("id"))
	if errors.Is(err, ErrNotFound) {
		return response.NotFound(c, "organization not found", "organization_not_found")
	}
	if err != nil {
		h.log.Error("Delete organization failed", zap.Error(err))
		return response.InternalError(c, "delete organization failed")
	}

	if h.publisher != nil {
		if err := h.publisher.Deleted(c.Context(), org); err != nil {
			// 事件发布失败不回滚删除；缓存键在 TTL 到期后自然失效
			h.log.Warn("Delete event publish failed", zap.String("org_id", org.ID))
		}
	}
	return response.OK(c, org)
}

func (h *Handler) publishUpsert(ctx context.Context, org, prev *Organization) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Upserted(ctx, org, prev); err != nil {
		// 发布失败只记录：权威数据已落库，解析走 API 兜底
		h.log.Warn("Upsert event publish failed", zap.String("org_id", org.ID))
	}
}
