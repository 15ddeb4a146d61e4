package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Worker (info)
		"Attached source %s (%s %s)": "ソース %s を接続しました (%s %s)",
		"End of stream on %s":        "%s のストリームが終了しました",

		// Worker (warnings)
		"Failed to open source %s: %v": "ソース %s を開けませんでした: %v",
		"Frame reference not released within %s; forcing takeover, display is out of sync": "フレーム参照が %s 以内に解放されませんでした。強制的に回収します (表示が同期していません)",
		"Frame reference still held at shutdown; force-released":                           "終了時にフレーム参照が保持されていたため強制的に解放しました",
		"Closing source %s: %v":                  "ソース %s のクローズ: %v",
		"Ignoring invalid grab resolution %dx%d": "無効なキャプチャ解像度 %dx%d を無視します",
		"Source %s cannot switch devices":        "ソース %s はデバイスを切り替えられません",
		"Source %s cannot play files":            "ソース %s はファイルを再生できません",
		"Source %s is not seekable":              "ソース %s はシークできません",
		"Resolution change failed: %v":           "解像度の変更に失敗しました: %v",
		"Seek to %s failed: %v":                  "%s へのシークに失敗しました: %v",
		"Clock synchronization failed: %v":       "クロック同期に失敗しました: %v",
		"Commit of frame %d failed: %v":          "フレーム %d のコミットに失敗しました: %v",

		// Worker (errors)
		"Grab from %s failed: %v":             "%s からのキャプチャに失敗しました: %v",
		"Capture loop did not stop within %s": "キャプチャループが %s 以内に停止しませんでした",

		// Viewer
		"Now showing %s":                                         "%s を表示中",
		"Source resolution is %dx%d":                             "ソース解像度は %dx%d です",
		"Source %s reported an error: %v":                        "ソース %s がエラーを報告しました: %v",
		"Source refused the requested resolution: %v":            "ソースが要求された解像度を拒否しました: %v",
		"Cannot snapshot %s frames: %v":                          "%s フレームのスナップショットを保存できません: %v",
		"Frame %d: %.1f fps, %d painted, %d missing, %d skipped": "フレーム %d: %.1f fps, 表示 %d, 欠落 %d, スキップ %d",

		// Shell
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",
	})
}
