// memberbook は会員管理APIサーバー。
//
// サブコマンド:
//
//	serve       APIサーバーを起動する（デフォルト）
//	worker      孤児画像クリーンアップワーカーを起動する
//	migrate     データベースマイグレーションを適用する
//	healthcheck /health エンドポイントの疎通を確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/memberbook/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
