package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は状況確認APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は交渉ワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandOffers は初回オファー送信パスを1回実行することを示す。
	CommandOffers Command = "offers"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "offers":
		return CommandOffers
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
