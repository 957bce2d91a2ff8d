package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages
		"Starting export":                   "エクスポートを開始します",
		"Export completed: %d frames to %s": "エクスポート完了: %d フレームを %s に保存しました",
		"Export cancelled":                  "エクスポートがキャンセルされました",
		"Export failed (%s): %s":            "エクスポートに失敗しました (%s): %s",

		"Exporting %d frames (%dx%d @ %.3g fps, %d workers, queue %d)": "%d フレームをエクスポート中 (%dx%d @ %.3g fps, ワーカー %d, キュー %d)",

		// Source / prefetch
		"Seek to %dus timed out, retrying with a fresh cursor": "%dus へのシークがタイムアウトしました。新しいカーソルで再試行します",

		// Compositing
		"Background image %s unreadable, using solid color":  "背景画像 %s を読み込めません。単色を使用します",
		"Background image %s undecodable, using solid color": "背景画像 %s をデコードできません。単色を使用します",
		"Picture-in-picture source unavailable: %s":          "ピクチャインピクチャのソースを利用できません: %s",

		"Picture-in-picture track ended before the export range; remaining frames render without it": "ピクチャインピクチャのトラックがエクスポート範囲より先に終了しました。以降のフレームはオーバーレイなしで描画します",
		"Picture-in-picture decode failed (%s); remaining frames render without it":                  "ピクチャインピクチャのデコードに失敗しました (%s)。以降のフレームはオーバーレイなしで描画します",

		// Worker pool
		"Worker %d failed to start: %s":                 "ワーカー %d の起動に失敗しました: %s",
		"Running with %d of %d render workers":          "レンダーワーカー %d/%d で実行中",
		"Worker %d crashed, respawning":                 "ワーカー %d がクラッシュしました。再起動中",
		"Worker %d respawn failed: %s":                  "ワーカー %d の再起動に失敗しました: %s",
		"Worker %d crashed, reducing parallelism to %d": "ワーカー %d がクラッシュしました。並列度を %d に下げます",
		"Retrying frame %d after worker crash":          "ワーカークラッシュ後にフレーム %d を再試行中",

		"Render workers unavailable (%s), falling back to single-threaded compositing": "レンダーワーカーを利用できません (%s)。シングルスレッド合成にフォールバックします",

		// Encoding
		"Encoder rejected frame %d, retrying: %s": "エンコーダがフレーム %d を拒否しました。再試行中: %s",
	})
}
