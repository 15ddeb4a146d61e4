// Package main provides localization for the framegrab CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Version command
		"framegrab version %s": "framegrab バージョン %s",

		// Run command
		"Capturing from %s...":                                               "%s からキャプチャ中...",
		"Captured %d frames, painted %d, missed %d":                          "%d フレームをキャプチャ、%d フレームを表示、%d フレームを欠落",
		"Failed to save stats: %v":                                           "統計の保存に失敗しました: %v",
		"Interrupted, shutting down...":                                      "中断されました。シャットダウン中...",
		"GStreamer support is not compiled in; rebuild with -tags gstreamer": "GStreamer サポートが組み込まれていません。-tags gstreamer で再ビルドしてください",

		// Summary output
		"Failed to write summary: %v": "サマリーの書き込みに失敗しました: %v",
		"Summary saved to %s":         "サマリーを %s に保存しました",

		// Summary content
		"Capture Summary":          "キャプチャサマリー",
		"Generated":                "生成日時",
		"Generated by":             "生成:",
		"Item":                     "項目",
		"Value":                    "値",
		"Source":                   "ソース",
		"Name":                     "名前",
		"Kind":                     "種類",
		"Format":                   "フォーマット",
		"Resolution":               "解像度",
		"Nominal Frame Rate":       "公称フレームレート",
		"Capture":                  "キャプチャ",
		"Result":                   "結果",
		"Completed":                "完了",
		"Failed":                   "失敗",
		"Duration":                 "時間",
		"Last Frame":               "最終フレーム",
		"Grabbed":                  "取得",
		"Committed":                "コミット",
		"Missing":                  "欠落",
		"Measured Frame Rate":      "実測フレームレート",
		"Transient Failures":       "一時的な失敗",
		"Reclaimed Slots":          "回収したスロット",
		"Forced Releases":          "強制解放",
		"Display":                  "表示",
		"Painted":                  "表示済み",
		"Never Shown":              "未表示",
		"Suppressed Notifications": "抑制された通知",
		"Snapshots":                "スナップショット",
		"Settings":                 "設定",
		"Slots":                    "スロット数",
		"Write Policy":             "書き込みポリシー",
		"Pending Cap":              "保留上限",
		"Frame Dropping":           "フレーム破棄",
		"Display Rate":             "表示レート",
		"On":                       "オン",
		"Off":                      "オフ",

		// Devices command
		"No devices found.": "デバイスが見つかりません。",

		// Probe command
		"Codec: %s":             "コーデック: %s",
		"Resolution: %s":        "解像度: %s",
		"Frame rate: %.3f fps":  "フレームレート: %.3f fps",
		"Duration: %s":          "再生時間: %s",
		"Samples: %d (%d sync)": "サンプル数: %d (同期サンプル %d)",
	})
}
