// Package errcode 补充 goddd reason 中缺少对应 HTTP 状态码的业务错误
// 与 reason 中同名错误的 Reason 相同，errors.Is 可以互相匹配
package errcode

import (
	"net/http"

	"github.com/ixugo/goddd/pkg/reason"
)

var (
	ErrNotFound  = reason.ErrNotFound.SetHTTPStatus(http.StatusNotFound)
	ErrForbidden = reason.ErrPermissionDenied.SetHTTPStatus(http.StatusForbidden)

	ErrConflict   = reason.NewError("ErrConflict", "资源状态冲突").SetHTTPStatus(http.StatusConflict)
	ErrBadGateway = reason.NewError("ErrBadGateway", "上游服务不可用").SetHTTPStatus(http.StatusBadGateway)
)

// HTTPStatus 返回错误对应的状态码，非业务错误视为 500
func HTTPStatus(err error) int {
	if e, ok := err.(reason.ErrorInfoer); ok {
		return e.GetHTTPCode()
	}
	return http.StatusInternalServerError
}
