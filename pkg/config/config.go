// Package config は環境変数からサービス設定を読み込み、検証する。
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// EnvProduction は本番環境を表すAPP_ENVの値。
const EnvProduction = "production"

// validate は設定構造体のvalidateタグを検証する。validator.Validateは並行利用できる。
var validate = validator.New(validator.WithRequiredStructEnabled())

// Load は環境変数をtargetに読み込み、validateタグに従って検証する。
func Load(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	return Validate(target)
}

// LoadWith は環境変数の代わりにenvironmentの値を使って設定を読み込む。
// テストで環境変数を汚染せずに設定を組み立てるために使用する。
func LoadWith(target any, environment map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	return Validate(target)
}

// Validate は設定構造体を検証する。
func Validate(target any) error {
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	return nil
}
