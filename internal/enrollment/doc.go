// Package enrollment は受講登録サービスの内部実装を提供する。
//
// 受講登録はコースの存在確認、ユーザーの存在確認、登録の書き込み、通知の依頼の順に進む。
// 検証はいずれもGateway経由で呼び出し元の認証情報を引き継いで行い、
// 通知の依頼はリクエストから切り離されたgoroutineで送信するため、失敗しても登録結果には影響しない。
// 同一ユーザー・同一コースの重複登録はenrollmentsテーブルのUNIQUE制約でのみ防ぐ。
package enrollment
