package handlers

import (
	"net/http"

	"plforum/internal/rbac"
	"plforum/internal/services"

	"github.com/gin-gonic/gin"
)

// RBACHandler 策略与角色分配管理，路由层要求 rbac manage 权限
type RBACHandler struct {
	enforcer *rbac.Enforcer
	audit    *services.AuditTrail
}

func NewRBACHandler(enforcer *rbac.Enforcer, audit *services.AuditTrail) *RBACHandler {
	return &RBACHandler{enforcer: enforcer, audit: audit}
}

func (h *RBACHandler) ListPolicies(c *gin.Context) {
	policies, err := h.enforcer.Policies(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	assignments, err := h.enforcer.Assignments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies, "assignments": assignments})
}

func (h *RBACHandler) record(c *gin.Context, action string, changed bool, metadata map[string]interface{}) {
	if !changed {
		return
	}
	h.audit.Write(c.Request.Context(), services.AuditEntry{
		Actor:      currentUser(c),
		Action:     action,
		TargetType: "rbac",
		Meta:       requestMeta(c),
		Metadata:   metadata,
	})
}

func policyMeta(p rbac.Policy) map[string]interface{} {
	return map[string]interface{}{"sub": p.Sub, "dom": p.Dom, "obj": p.Obj, "act": p.Act}
}

func assignmentMeta(a rbac.Assignment) map[string]interface{} {
	return map[string]interface{}{"user": a.User, "role": a.Role, "dom": a.Dom}
}

func (h *RBACHandler) AddPolicy(c *gin.Context) {
	var p rbac.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "sub, obj and act are required")
		return
	}
	added, err := h.enforcer.AddPolicy(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, services.AuditRBACPolicyAdd, added, policyMeta(p))
	c.JSON(http.StatusOK, gin.H{"changed": added})
}

func (h *RBACHandler) RemovePolicy(c *gin.Context) {
	var p rbac.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "sub, obj and act are required")
		return
	}
	removed, err := h.enforcer.RemovePolicy(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, services.AuditRBACPolicyRemove, removed, policyMeta(p))
	c.JSON(http.StatusOK, gin.H{"changed": removed})
}

func (h *RBACHandler) AddAssignment(c *gin.Context) {
	var a rbac.Assignment
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, "user and role are required")
		return
	}
	added, err := h.enforcer.AddRoleForUser(c.Request.Context(), a)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, services.AuditRBACRoleAdd, added, assignmentMeta(a))
	c.JSON(http.StatusOK, gin.H{"changed": added})
}

func (h *RBACHandler) RemoveAssignment(c *gin.Context) {
	var a rbac.Assignment
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, "user and role are required")
		return
	}
	removed, err := h.enforcer.DeleteRoleForUser(c.Request.Context(), a)
	if err != nil {
		writeError(c, err)
		return
	}
	h.record(c, services.AuditRBACRoleRemove, removed, assignmentMeta(a))
	c.JSON(http.StatusOK, gin.H{"changed": removed})
}
