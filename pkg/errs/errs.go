package errs

import "fmt"

// ============================================================================
// 业务错误定义
// ============================================================================
//
// 业务错误携带稳定的错误码和提示信息，由 service 层返回，
// handler 层通过 errors.As 识别后映射到统一响应体。
// 非业务错误（数据库异常等）按普通 error 向上传递。
//
// 错误码分段：
//   4xx   认证/权限
//   1xxx  用户/钱包
//   2xxx  库存
//   3xxx  订单
//   4xxx  挂单
//   5xxx  系统/并发
// ============================================================================

const (
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403

	CodeUserNotFound     = 1001
	CodeBalanceNotEnough = 1004

	CodeItemNotFound       = 2001
	CodeItemNotInInventory = 2002
	CodeItemAlreadyOnSale  = 2003

	CodeOrderNotFound    = 3001
	CodeOrderStatusError = 3002

	CodeListingNotFound   = 4001
	CodeListingSoldOut    = 4002
	CodeListingPriceError = 4003
	CodeListingNotOnSale  = 4004

	CodeConcurrentError = 5004
)

// BizError 业务错误
type BizError struct {
	Code    int
	Message string
}

func (e *BizError) Error() string {
	return e.Message
}

func New(code int, message string) *BizError {
	return &BizError{Code: code, Message: message}
}

func Newf(code int, format string, args ...interface{}) *BizError {
	return &BizError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is 支持 errors.Is 按错误码比较
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
