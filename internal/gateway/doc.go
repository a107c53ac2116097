// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として機能する。
// 起動時に構築した不変のルートテーブルに従い、最長一致でルートを選択し、
// 保護されたルートではBearerトークンを検証してから内部サービスへ転送する。
// 転送時には検証済みの呼び出し元情報を X-User-Id / X-User-Role / X-User-Email
// ヘッダーとして付与し、外部から送られた同名ヘッダーは必ず破棄する。
package gateway
