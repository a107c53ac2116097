// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの検証（Verifier）、Gatewayが付与する識別ヘッダーの受け渡し、
// ロールによるアクセス制御、リクエストログ、パニックリカバリ、CORS、
// レート制限など、全サービスで共通して使用するミドルウェアを含む。
package middleware
