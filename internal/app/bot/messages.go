package bot

import "fmt"

// Trigger phrases and fixed link targets.
const (
	FeatureRequestTrigger = "機能リクエスト"
	CameraRollURI         = "line://nv/cameraRoll/multi"
)

const (
	welcomeText        = "友達追加ありがとう！画像を送るとメルカリの出品用に「専用」「送料込み」等のテキストを追加するBotだよ。気に入ったら友達にもオススメしてね！"
	featureRequestText = "以下のフォームから入力してください♪"
	inquiryAckText     = "受け付けました♪"
	composedText       = "加工完了♪"

	failureText          = "ごめんね、うまく処理できなかったよ。時間をおいてもう一度試してね。"
	unsupportedImageText = "この画像は加工できなかったよ。別の画像を送ってね。"
	rateLimitedText      = "画像が続けて届いたよ。少し待ってからもう一度送ってね♪"
	missingUserText      = "ユーザー情報を取得できなかったよ。1対1のトークで送ってね。"
)

func welcomeCard() Card {
	return Card{
		AltText: welcomeText,
		Title:   welcomeText,
		Button:  Button{Label: "画像を選択", URI: CameraRollURI},
	}
}

func featureRequestCard(formURI string) Card {
	return Card{
		AltText: featureRequestText,
		Title:   featureRequestText,
		Button:  Button{Label: "フォームを開く", URI: formURI},
	}
}

func labelChangedCard(labelText, previewURL string) Card {
	title := fmt.Sprintf("「%s」に変更したよ。画像を送ってね♪", labelText)
	return Card{
		AltText: title,
		HeroURL: previewURL,
		Title:   title,
		Button:  Button{Label: "画像を選択", URI: CameraRollURI},
	}
}

func currentModeText(labelText string) Text {
	return Text{Text: fmt.Sprintf("載せたいテキストを変更したい時には↓をタップしてね。今は「%s」に設定されてるよ♪", labelText)}
}

func composedCard(resultURL string) Card {
	return Card{
		AltText: composedText,
		Title:   composedText,
		Button:  Button{Label: "ダウンロード", URI: resultURL},
	}
}
