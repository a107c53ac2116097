// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスがGateway経由で他のサービスのAPIを呼び出す際に使用する。
// 呼び出し元の認証情報をそのまま転送し、応答ステータスを型付きのエラーとして返すため、
// 呼び出し側は「存在しない」と「通信失敗」をエラー文字列に頼らず区別できる。
package httpclient
