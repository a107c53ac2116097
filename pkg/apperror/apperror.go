// Package apperror はサービス共通のエラー分類と、構造化されたエラーレスポンスを提供する。
//
// すべてのエラーレスポンスは {"error", "class", "code", "detail"} 形式で返却され、
// クライアントはclassとcodeでエラーの種類を判別できる。
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Class はエラーの分類を表す。
type Class string

const (
	// ClassAuth は認証情報の欠落・不正・期限切れを表す。
	ClassAuth Class = "auth_error"
	// ClassRoute は一致するルートが存在しないことを表す。
	ClassRoute Class = "route_error"
	// ClassUpstream は転送先や連携サービスとの通信失敗を表す。
	ClassUpstream Class = "upstream_error"
	// ClassValidation はエンティティ不在や重複登録など、利用者が対処可能な拒否を表す。
	ClassValidation Class = "validation_error"
	// ClassRateLimit はリクエスト数の上限超過を表す。
	ClassRateLimit Class = "rate_limit_error"
	// ClassInternal は想定外の内部エラーを表す。
	ClassInternal Class = "internal_error"
)

// Code はエラーの詳細な種別を表す。
type Code string

const (
	CodeMissingCredential       Code = "MissingCredential"
	CodeMalformedCredential     Code = "MalformedCredential"
	CodeInvalidCredential       Code = "InvalidCredential"
	CodeExpiredCredential       Code = "ExpiredCredential"
	CodeForbidden               Code = "Forbidden"
	CodeRouteNotFound           Code = "RouteNotFound"
	CodeUpstreamUnavailable     Code = "UpstreamUnavailable"
	CodeUpstreamValidationError Code = "UpstreamValidationError"
	CodeCourseNotFound          Code = "CourseNotFound"
	CodeUserNotFound            Code = "UserNotFound"
	CodeAlreadyEnrolled         Code = "AlreadyEnrolled"
	CodeNotFound                Code = "NotFound"
	CodeBadRequest              Code = "BadRequest"
	CodeRateLimited             Code = "RateLimited"
	CodeInternal                Code = "InternalError"
)

// Error はHTTPステータスとエラー分類を持つアプリケーションエラー。
type Error struct {
	// Class はエラーの分類。
	Class Class
	// Code はエラーの詳細な種別。
	Code Code
	// Status はレスポンスのHTTPステータスコード。
	Status int
	// Message は利用者向けのメッセージ。
	Message string
	// Detail は補足情報。空の場合はレスポンスに含めない。
	Detail string
	// Err は原因となったエラー。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Is はCodeが一致する場合にtrueを返す。
// errors.Is(err, apperror.AlreadyEnrolled(nil)) のように種別で比較できる。
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail は補足情報を設定したコピーを返す。
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Payload はエラーレスポンスのJSON構造。
type Payload struct {
	// Error は利用者向けのメッセージ。
	Error string `json:"error"`
	// Class はエラーの分類。
	Class Class `json:"class"`
	// Code はエラーの詳細な種別。
	Code Code `json:"code"`
	// Detail は補足情報。
	Detail string `json:"detail,omitempty"`
	// Path は一致するルートがなかった場合のリクエストパス。
	Path string `json:"path,omitempty"`
}

func newError(class Class, code Code, status int, message string, err error) *Error {
	return &Error{Class: class, Code: code, Status: status, Message: message, Err: err}
}

// MissingCredential はAuthorizationヘッダーが存在しないエラーを返す。
func MissingCredential() *Error {
	return newError(ClassAuth, CodeMissingCredential, http.StatusUnauthorized, "Authorizationヘッダーが必要です", nil)
}

// MalformedCredential はBearerトークン形式が不正なエラーを返す。
func MalformedCredential() *Error {
	return newError(ClassAuth, CodeMalformedCredential, http.StatusUnauthorized, "Bearer トークン形式が不正です", nil)
}

// InvalidCredential は署名検証に失敗したトークンのエラーを返す。
func InvalidCredential(err error) *Error {
	return newError(ClassAuth, CodeInvalidCredential, http.StatusForbidden, "トークンが無効です", err)
}

// ExpiredCredential は有効期限切れトークンのエラーを返す。
func ExpiredCredential(err error) *Error {
	return newError(ClassAuth, CodeExpiredCredential, http.StatusForbidden, "トークンの有効期限が切れています", err)
}

// Forbidden はロール不足などでアクセスを拒否するエラーを返す。
func Forbidden(message string) *Error {
	return newError(ClassAuth, CodeForbidden, http.StatusForbidden, message, nil)
}

// RouteNotFound は一致するルートが存在しないエラーを返す。
func RouteNotFound() *Error {
	return newError(ClassRoute, CodeRouteNotFound, http.StatusNotFound, "エンドポイントが見つかりません", nil)
}

// UpstreamUnavailable は転送先サービスに到達できないエラーを返す。
func UpstreamUnavailable(err error) *Error {
	return newError(ClassUpstream, CodeUpstreamUnavailable, http.StatusBadGateway, "内部サービスとの通信に失敗しました", err)
}

// UpstreamValidation は連携サービスによる検証が失敗したエラーを返す。
func UpstreamValidation(message string, err error) *Error {
	return newError(ClassUpstream, CodeUpstreamValidationError, http.StatusBadGateway, message, err)
}

// CourseNotFound はコースが存在しないエラーを返す。
func CourseNotFound() *Error {
	return newError(ClassValidation, CodeCourseNotFound, http.StatusNotFound, "コースが見つかりません", nil)
}

// UserNotFound はユーザーが存在しないエラーを返す。
func UserNotFound() *Error {
	return newError(ClassValidation, CodeUserNotFound, http.StatusNotFound, "ユーザーが見つかりません", nil)
}

// AlreadyEnrolled は同一ユーザー・同一コースの重複登録エラーを返す。
func AlreadyEnrolled(err error) *Error {
	return newError(ClassValidation, CodeAlreadyEnrolled, http.StatusConflict, "このコースには既に登録済みです", err)
}

// NotFound は汎用的なリソース不在エラーを返す。
func NotFound(message string) *Error {
	return newError(ClassValidation, CodeNotFound, http.StatusNotFound, message, nil)
}

// BadRequest はリクエスト内容の不備を表すエラーを返す。
func BadRequest(message string) *Error {
	return newError(ClassValidation, CodeBadRequest, http.StatusBadRequest, message, nil)
}

// RateLimited はリクエスト数の上限超過エラーを返す。
func RateLimited() *Error {
	return newError(ClassRateLimit, CodeRateLimited, http.StatusTooManyRequests, "リクエストが多すぎます", nil)
}

// Internal は想定外の内部エラーを返す。
func Internal(err error) *Error {
	return newError(ClassInternal, CodeInternal, http.StatusInternalServerError, "内部サーバーエラーが発生しました", err)
}

// From は任意のエラーを*Errorに変換する。*Errorを含まないエラーはInternalとして扱う。
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// ToPayload はエラーをレスポンス用の構造に変換する。
// debugがfalseの場合、内部エラーの原因はレスポンスに含めない。
func ToPayload(err error, debug bool) (int, Payload) {
	appErr := From(err)
	p := Payload{
		Error:  appErr.Message,
		Class:  appErr.Class,
		Code:   appErr.Code,
		Detail: appErr.Detail,
	}
	switch {
	case appErr.Class == ClassInternal && !debug:
		p.Detail = ""
	case p.Detail == "" && debug && appErr.Err != nil:
		p.Detail = appErr.Err.Error()
	case p.Detail == "" && appErr.Class == ClassAuth && appErr.Err != nil:
		// 無効と期限切れを区別できるよう、認証エラーは常に原因を返す
		p.Detail = appErr.Err.Error()
	}
	return appErr.Status, p
}

// Abort はエラーレスポンスを書き込み、後続のハンドラを中断する。
func Abort(c *gin.Context, err error, debug bool) {
	if err == nil {
		err = Internal(nil)
	}
	status, p := ToPayload(err, debug)
	if p.Code == CodeRouteNotFound {
		p.Path = c.Request.URL.Path
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, p)
}
