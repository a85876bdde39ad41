package handler

import (
	"github.com/gin-gonic/gin"

	"ims-cics/backend/pkg/jwt"
	"ims-cics/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

// GetCompanyID 提取 Token 中的 company_id，管理员 Token 可能为空
func GetCompanyID(c *gin.Context) string {
	return c.GetString("company_id")
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// actorScope 解析打卡与状态查询的操作范围。
// 学生只能操作本人；指导老师限定在 Token 所属单位；管理员不受限（返回空范围）。
func actorScope(c *gin.Context, studentID string) (string, bool) {
	role, ok := MustGetRole(c)
	if !ok {
		return "", false
	}

	switch role {
	case jwt.RoleStudent:
		userID, ok := MustGetUserID(c)
		if !ok {
			return "", false
		}
		if userID != studentID {
			response.Forbidden(c, 10003, "只能为本人打卡")
			return "", false
		}
		return "", true
	case jwt.RoleSupervisor:
		companyID := GetCompanyID(c)
		if companyID == "" {
			response.Forbidden(c, 10003, "账号未绑定实习单位")
			return "", false
		}
		return companyID, true
	default:
		return "", true
	}
}
