package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 订单模块错误 300xx
	ErrOrderNotFound     = 30001
	ErrInvalidOrderInput = 30002
	ErrCancelNotAllowed  = 30003
	ErrInvalidTransition = 30004

	// 支付模块错误 400xx
	ErrGatewayUnavailable = 40001
	ErrVerificationFailed = 40002
	ErrSessionNotFound    = 40003

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
	ErrTokenInvalid    = 50004
	ErrNoPermission    = 50005
)
