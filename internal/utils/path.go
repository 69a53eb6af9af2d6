package utils

import "strings"

// CleanURL 去掉查询串和末尾的文件段，统一以 "/" 结尾
//
//	/api/users?id=1   -> /api/users/
//	/static/app.js    -> /static/
//	/                 -> /
func CleanURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndexByte(u, '/'); i >= 0 && strings.Contains(u[i+1:], ".") {
		u = u[:i]
	}
	u = strings.TrimSuffix(u, "/")
	return u + "/"
}

// NormalizePath 路径统计使用的规范化路径
func NormalizePath(p string) string {
	return strings.ToLower(strings.TrimSpace(CleanURL(p)))
}
