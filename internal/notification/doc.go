// Package notification は通知サービスの内部実装を提供する。
//
// 受け付けた通知の依頼を処理中(processing)として記録し、応答した後で配信する。
// 配信はDispatcherがリクエストから切り離して行い、宛先の解決と送信の結果に応じて
// 記録を送信済み(sent)または失敗(failed)へ一度だけ遷移させる。
// 依頼元は配信結果を受け取らず、記録の状態でのみ観測できる。
package notification
