package request

// UpdateFormRequest 修改一个表单字段
type UpdateFormRequest struct {
	Name  string `json:"name" binding:"required,oneof=receiver addressTo amount keyword message"`
	Value string `json:"value"`
}

// SubmitRequest 提交时可以顺带覆盖表单，未提供的字段保持原值
type SubmitRequest struct {
	AddressTo *string `json:"addressTo"`
	Amount    *string `json:"amount" binding:"omitempty,positive_decimal"`
	Keyword   *string `json:"keyword"`
	Message   *string `json:"message"`
}
