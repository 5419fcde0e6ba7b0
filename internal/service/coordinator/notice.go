package coordinator

import (
	"errors"

	"transfer-core/internal/service/state"
	"transfer-core/pkg/errno"
)

var kindNames = map[int]string{
	errno.ErrProviderMissing.Code:        "ProviderMissing",
	errno.ErrUserRejected.Code:           "UserRejected",
	errno.ErrChainRejected.Code:          "ChainRejected",
	errno.ErrBusy.Code:                   "Busy",
	errno.ErrPersistenceUnavailable.Code: "PersistenceUnavailable",
	errno.ErrInvalidInput.Code:           "InvalidInput",
	errno.ErrNotConnected.Code:           "NotConnected",
}

// KindName 错误类别的名字，未知类别为 Internal
func KindName(code int) string {
	if name, ok := kindNames[code]; ok {
		return name
	}
	return "Internal"
}

func (c *Coordinator) noticeFor(err error) *state.Notice {
	kind, _ := errno.KindOf(err)
	n := &state.Notice{
		Code:    kind.Code,
		Kind:    KindName(kind.Code),
		Message: err.Error(),
		At:      c.now().UTC(),
	}
	var op *errno.OpError
	if errors.As(err, &op) {
		n.Op = op.Op
	}
	return n
}
