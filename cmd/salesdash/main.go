// Command salesdash はセールスリード管理ダッシュボードを起動する。
//
//	salesdash [serve]     ダッシュボードサーバーを起動する（既定）
//	salesdash migrate     データベースマイグレーションを適用する
//	salesdash healthcheck /health を確認する（コンテナのヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/eryai/salesdash/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
