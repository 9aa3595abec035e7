package app

import "fmt"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はダッシュボードサーバーとして起動することを示す。引数なしの既定。
	CommandServe Command = "serve"
	// CommandMigrate は埋め込みマイグレーションを適用して終了することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中サーバーの/healthを確認することを示す。
	// シェルを持たないdistrolessイメージのHEALTHCHECKから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
)

// usage は不明なサブコマンドを受け取った場合に返す使い方。
const usage = "usage: salesdash [serve|migrate|healthcheck]"

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2番目以降の引数は無視する。
// タイプミスでサーバーが起動しないよう、未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandMigrate, CommandHealthcheck:
		return cmd, nil
	default:
		return "", fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
}
