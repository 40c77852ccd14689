package risk

import "errors"

var (
	// ErrInvalidParameter 表示置信水平、方法或数据类型不合法，调用不会返回部分结果。
	ErrInvalidParameter = errors.New("invalid risk parameter")

	// ErrNilTable 表示未提供数据集。
	ErrNilTable = errors.New("risk: 数据集不能为空")
)

// IsInvalidParameter 判断错误是否源于参数校验失败。
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}
