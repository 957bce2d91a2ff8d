// Package main provides localization for the screenshow CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Export screen recordings as polished MP4 videos": "画面録画を仕上げ加工したMP4動画として書き出し",

		// Export command
		"Render and encode a recording into an MP4 file": "録画をレンダリングしてMP4ファイルにエンコード",

		// Probe command
		"Print video track information for an MP4 file": "MP4ファイルの映像トラック情報を表示",

		// Export flags
		"Output MP4 file path":                                  "出力MP4ファイルパス",
		"Render configuration YAML file":                        "レンダリング設定のYAMLファイル",
		"Output video width":                                    "出力動画の幅",
		"Output video height":                                   "出力動画の高さ",
		"Output frame rate":                                     "出力フレームレート",
		"Export start offset in milliseconds":                   "書き出し開始位置（ミリ秒）",
		"Export end offset in milliseconds (0 = source end)":    "書き出し終了位置（ミリ秒、0 = ソース末尾）",
		"Video quality (CRF 0-51, lower is better)":             "動画品質（CRF 0-51、低いほど高品質）",
		"Target bitrate in kbps (0 = CRF only)":                 "目標ビットレート（kbps、0 = CRFのみ）",
		"Duration to hold the final frame in milliseconds":      "最終フレームの保持時間（ミリ秒）",
		"Picture-in-picture MP4 file (e.g. a camera track)":     "ピクチャインピクチャのMP4ファイル（例: カメラトラック）",
		"Number of render workers (0 = derived from CPU count)": "レンダーワーカー数（0 = CPU数から決定）",
		"Maximum frames in flight toward the encoder":           "エンコーダへ送出中のフレーム数の上限",
		"Disable parallel rendering":                            "並列レンダリングを無効化",
		"Per-seek decode timeout":                               "シークごとのデコードタイムアウト",
		"Save intermediate frames and configuration":            "中間フレームと設定を保存",
		"Directory for debug output":                            "デバッグ出力のディレクトリ",
		"Log level (debug, info, warn, error)":                  "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                               "全てのログ出力を抑制",

		// Runtime messages
		"Interrupted, shutting down...":           "中断されました。シャットダウン中...",
		"Progress: %d/%d frames (%d%%)":           "進捗: %d/%d フレーム (%d%%)",
		"expected exactly one input file, got %d": "入力ファイルは1つだけ指定してください（指定数: %d）",
	})
}
