package agent

import "fmt"

// このファイルのビルダーはエージェントに渡すタスク記述テキストを組み立てる。
// レポートの書式（SELLER_NAME: 等のキーと分類トークン）はパーサー側の
// ルールテーブルと対応しており、片方だけ変更してはならない。

// ReadConversationTask は会話スレッドの確認タスクを生成する。
func ReadConversationTask(conversationURL string) string {
	return fmt.Sprintf(`Check conversation at %s

1. Go to the URL
2. Read all messages and extract conversation data
3. Report the following information in this EXACT format:

SELLER_NAME: [name from conversation header/title]
PRODUCT_NAME: [product name from conversation header/title]
LAST_MESSAGE: [most recent message in the conversation]
LAST_MESSAGE_FROM: [either "us" or "seller"]

4. Then analyze seller's response and report ONE of the following:
   - If they accepted our offer: Reply "SELLER_ACCEPTED"
   - If they made a counter-offer (mentioned a different price): Reply "COUNTER_OFFER: $[their price]"
   - If they asked about location/meeting place: Reply "SELLER_QUESTIONS: location"
   - If they asked about payment method: Reply "SELLER_QUESTIONS: payment"
   - If they asked about timing/when to meet: Reply "SELLER_QUESTIONS: timing"
   - If they asked about phone condition requirements: Reply "SELLER_QUESTIONS: condition"
   - If they mentioned other buyers: Reply "SELLER_QUESTIONS: other_buyers"
   - If they said item is sold: Reply "SELLER_QUESTIONS: sold"
   - If they asked for more details about us: Reply "SELLER_QUESTIONS: about_us"
   - If they want a different meeting place: Reply "SELLER_QUESTIONS: meeting_place"
   - If their message is unclear or very complex: Reply "NEEDS_HUMAN_HELP"
   - If no response from seller yet: Reply "NO_RESPONSE"
5. Wait for my instructions on how to respond`, conversationURL)
}

// SendReplyTask は返信メッセージの送信タスクを生成する。
func SendReplyTask(message string) string {
	return fmt.Sprintf(`ACTION REQUIRED: Send the reply.
1. Click on the chat input box.
2. Type exactly: "%s"
3. Press Enter to send.
4. Verify the message appears in the chat history.`, message)
}

// InspectListingTask は出品ページの確認タスクを生成する。
// 出品の実在確認と出品者・商品情報の抽出を行う。
func InspectListingTask(listingURL string) string {
	return fmt.Sprintf(`Open the listing at %s

1. Go to the URL
2. Check whether the listing is still available
3. Report the following in this EXACT format:

TITLE: [listing title]
SELLER: [seller name]
DESC: [listing description text]

4. Then report ONE of the following:
   - If the listing page shows it is no longer available: Reply "STATUS: UNAVAILABLE"
   - If the item is clearly not the product we are looking for: Reply "STATUS: NOT_IPHONE"
   - If we have already messaged this seller: Reply "STATUS: ALREADY_MESSAGED"
   - Otherwise: Reply "STATUS: OK"`, listingURL)
}

// SendOfferTask は出品ページからの初回オファー送信タスクを生成する。
func SendOfferTask(listingURL, message string) string {
	return fmt.Sprintf(`Send an offer message for the listing at %s

1. Go to the URL
2. Click the message button to open the chat box
3. Clear any pre-filled text
4. Type exactly: "%s"
5. Press Enter to send
6. After sending, report the conversation URL in this EXACT format:

CONVERSATION_URL_START
[the facebook.com/messages/t/... URL of the new conversation]
CONVERSATION_URL_END`, listingURL, message)
}

// SearchListingsTask はマーケットプレイス検索タスクを生成する。
// 検索語に合致する出品のURL一覧を収集する。
func SearchListingsTask(product string) string {
	return fmt.Sprintf(`Search facebook.com/marketplace for "%s"

1. Open the marketplace search results for the query
2. Scroll until no new results load
3. For each result, report one line in this EXACT format:

LISTING: [the facebook.com/marketplace/item/... URL] | [listing title] | [price shown]

4. Report "SEARCH_END" after the last result.`, product)
}

// InboxScanTask はメッセージ受信箱の巡回タスクを生成する。
// 管理外のスレッドを発見して取り込むために使う。
func InboxScanTask() string {
	return `Go to facebook.com/messages

1. Read the inbox list
2. For each marketplace conversation visible, report one line in this EXACT format:

THREAD: [the facebook.com/messages/t/... URL] | [seller name] | [last message preview]

3. Report "INBOX_END" after the last conversation.`
}
