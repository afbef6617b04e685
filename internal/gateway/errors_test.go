package gateway_test

import (
	"errors"
	"testing"

	"whosehouse/internal/gateway"

	"github.com/stretchr/testify/require"
)

// 钉死后端Token错误的措辞映射：后端只通过文案子串表达类别
func TestClassifyTokenError_PinnedPhrasings(t *testing.T) {
	cases := []struct {
		backendMsg string
		want       gateway.Code
	}{
		{"Token has expired", gateway.CodeTokenExpired},
		{"Access token expired", gateway.CodeTokenExpired},
		{"Invalid or already used token", gateway.CodeTokenInvalid},
		{"Invalid token", gateway.CodeTokenInvalid},
		{"invalid token format", gateway.CodeTokenInvalid},
		{"connection reset by peer", gateway.CodeNetworkError},
		{"something unexpected", gateway.CodeNetworkError},
	}
	for _, c := range cases {
		err := gateway.ClassifyTokenError(gateway.NewError(gateway.CodeUnknownError, c.backendMsg))
		require.Equal(t, c.want, err.Code, "message %q", c.backendMsg)
		// 原始文案保留作诊断
		require.Equal(t, c.backendMsg, err.Message)
	}
}

// 同时含"expired"与"invalid"时，expired优先
func TestClassifyTokenError_ExpiredWins(t *testing.T) {
	err := gateway.ClassifyTokenError(gateway.NewError(gateway.CodeUnknownError, "invalid: token expired"))
	require.Equal(t, gateway.CodeTokenExpired, err.Code)
}

func TestClassifyTokenError_PlainError(t *testing.T) {
	err := gateway.ClassifyTokenError(errors.New("dial tcp: connection refused"))
	require.Equal(t, gateway.CodeNetworkError, err.Code)
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, gateway.CodeRateLimited, gateway.CodeOf(gateway.NewError(gateway.CodeRateLimited, "slow down")))
	require.Equal(t, gateway.CodeUnknownError, gateway.CodeOf(errors.New("plain")))
	require.Equal(t, gateway.Code(""), gateway.CodeOf(nil))
}

// 儿童界面的提示绝不包含后端原文
func TestChildMessage_NeverLeaksBackendText(t *testing.T) {
	codes := []gateway.Code{
		gateway.CodeTokenExpired,
		gateway.CodeTokenInvalid,
		gateway.CodeNetworkError,
		gateway.CodeDatabaseError,
		gateway.CodeUnknownError,
	}
	for _, code := range codes {
		msg := gateway.ChildMessage(code)
		require.NotEmpty(t, msg)
		require.NotContains(t, msg, "token_hash")
		require.NotContains(t, msg, "database")
		require.NotContains(t, msg, "SQL")
	}
}
