// Package event はサービス間で受け渡す通知インテントの契約を定義する。
//
// enrollmentサービスが送信し、notificationサービスが受け取る。
// 送信側は結果を待たず、配信結果は通知ログの状態遷移としてのみ観測できる。
package event

import (
	"errors"
	"strings"
)

// Type は通知の種類を表す。
type Type string

const (
	// TypeInfo は種類が指定されなかった通知を表す。
	TypeInfo Type = "INFO"
	// TypeEnrollmentSuccess はコースへの登録が完了したことを表す。
	TypeEnrollmentSuccess Type = "ENROLLMENT_SUCCESS"
)

// NotificationIntent は非同期に配信される通知の依頼。
type NotificationIntent struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Type は通知の種類。空の場合はTypeInfoとして扱う。
	Type Type `json:"type,omitempty"`
}

// ErrInvalidIntent は必須項目が欠けたインテントを表す。
var ErrInvalidIntent = errors.New("user_idとmessageは必須です")

// Normalize は前後の空白を除去し、種類の既定値を補完したコピーを返す。
func (n NotificationIntent) Normalize() NotificationIntent {
	n.UserID = strings.TrimSpace(n.UserID)
	n.Message = strings.TrimSpace(n.Message)
	if strings.TrimSpace(string(n.Type)) == "" {
		n.Type = TypeInfo
	}
	return n
}

// Validate はインテントの必須項目を検証する。
func (n NotificationIntent) Validate() error {
	if strings.TrimSpace(n.UserID) == "" || strings.TrimSpace(n.Message) == "" {
		return ErrInvalidIntent
	}
	return nil
}
