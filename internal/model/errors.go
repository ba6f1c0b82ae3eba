package model

import (
	"fmt"
	"strings"
)

// AuthError は認証・認可の失敗を表す。
// 致命的エラーであり、リトライせずエクスポート全体を中断する。
type AuthError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("認証に失敗しました (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("認証に失敗しました: %s", e.Message)
}

// NewAuthError は認証エラーを生成する。
func NewAuthError(statusCode int, message string) *AuthError {
	return &AuthError{StatusCode: statusCode, Message: message}
}

// RemoteError はリモートAPIの呼び出し失敗を表す。
// Transientがtrueの場合（429/5xx/ネットワークエラー）は呼び出し側でリトライされ、
// リトライ回数を使い切った後にオーケストレータへ項目単位の失敗として伝播する。
type RemoteError struct {
	StatusCode int
	URL        string
	Message    string
	Transient  bool
}

// Error はerrorインターフェースを実装する。
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("リモートAPIの呼び出しに失敗しました (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("リモートAPIの呼び出しに失敗しました: %s", e.Message)
}

// NewRemoteError はリモートエラーを生成する。
func NewRemoteError(statusCode int, url, message string, transient bool) *RemoteError {
	return &RemoteError{StatusCode: statusCode, URL: url, Message: message, Transient: transient}
}

// PartialResolutionError は一部のユーザーIDを解決できなかったことを表す。
// 非致命的エラーであり、未解決IDはセンチネルにフォールバックして実行を継続する。
type PartialResolutionError struct {
	MissingIDs []int64
}

// Error はerrorインターフェースを実装する。
func (e *PartialResolutionError) Error() string {
	ids := make([]string, 0, len(e.MissingIDs))
	for _, id := range e.MissingIDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return fmt.Sprintf("%d件のユーザーIDを解決できませんでした: [%s]", len(e.MissingIDs), strings.Join(ids, ", "))
}

// NewPartialResolutionError は部分解決エラーを生成する。
func NewPartialResolutionError(missingIDs []int64) *PartialResolutionError {
	return &PartialResolutionError{MissingIDs: missingIDs}
}

// WindowComputationError は日付ウィンドウ計算の失敗を表す。
// 致命的エラーであり、エクスポート全体を中断する。
type WindowComputationError struct {
	Mode   string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *WindowComputationError) Error() string {
	return fmt.Sprintf("日付ウィンドウの計算に失敗しました (mode=%s): %s", e.Mode, e.Reason)
}

// NewWindowComputationError はウィンドウ計算エラーを生成する。
func NewWindowComputationError(mode, reason string) *WindowComputationError {
	return &WindowComputationError{Mode: mode, Reason: reason}
}
