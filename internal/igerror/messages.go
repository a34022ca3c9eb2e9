package igerror

var userMessages = map[Code]string{
	CodeTokenExpired:      "Instagramの認証が期限切れです。設定から再連携してください。",
	CodeInvalidToken:      "Instagramの認証情報が無効です。設定から再連携してください。",
	CodePermissionDenied:  "Instagramへの投稿権限がありません。アカウントの権限を確認してください。",
	CodeRateLimit:         "Instagramの投稿制限に達しました。しばらく時間をおいて再試行されます。",
	CodeInvalidMedia:      "動画形式がInstagramに対応していません。",
	CodeMediaTooLarge:     "動画ファイルが大きすぎます。",
	CodeUnsupportedFormat: "動画形式がサポートされていません。",
	CodeTemporaryError:    "一時的なエラーが発生しました。自動的に再試行されます。",
	CodeNetworkError:      "ネットワークエラーが発生しました。自動的に再試行されます。",
	CodeProcessingTimeout: "動画の処理がタイムアウトしました。自動的に再試行されます。",
	CodeUnknownError:      "予期せぬエラーが発生しました。",
}

// UserMessage returns the fixed end-user text for code. Raw provider messages
// must never be shown to users; use this instead.
func UserMessage(code Code) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return userMessages[CodeUnknownError]
}
